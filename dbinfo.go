package couchreq

// DBInfo is the reply of GET /{db}.
type DBInfo struct {
	Name              string `json:"db_name"`
	DocCount          int64  `json:"doc_count"`
	DeletedCount      int64  `json:"doc_del_count"`
	UpdateSeq         Seq    `json:"update_seq"`
	PurgeSeq          Seq    `json:"purge_seq"`
	CompactRunning    bool   `json:"compact_running"`
	InstanceStartTime string `json:"instance_start_time"`

	// DiskSize, ActiveSize and ExternalSize are taken from sizes, falling
	// back to the CouchDB 1.x disk_size and data_size fields.
	DiskSize     int64 `json:"-"`
	ActiveSize   int64 `json:"-"`
	ExternalSize int64 `json:"-"`

	Cluster *ClusterParams `json:"cluster"`
	Props   struct {
		Partitioned bool `json:"partitioned"`
	} `json:"props"`
}

// ClusterParams are a database's sharding and quorum parameters.
type ClusterParams struct {
	Replicas    int `json:"n"`
	Shards      int `json:"q"`
	ReadQuorum  int `json:"r"`
	WriteQuorum int `json:"w"`
}

// DBInfo returns the reply as database information.
func (r *Response) DBInfo() (*DBInfo, error) {
	var result struct {
		DBInfo
		DiskSize int64 `json:"disk_size"`
		DataSize int64 `json:"data_size"`
		Sizes    struct {
			File     int64 `json:"file"`
			External int64 `json:"external"`
			Active   int64 `json:"active"`
		} `json:"sizes"`
	}
	if err := r.decode(&result); err != nil {
		return nil, err
	}
	info := result.DBInfo
	info.DiskSize = result.DiskSize
	info.ActiveSize = result.DataSize
	if result.Sizes.File > 0 {
		info.DiskSize = result.Sizes.File
	}
	if result.Sizes.External > 0 {
		info.ExternalSize = result.Sizes.External
	}
	if result.Sizes.Active > 0 {
		info.ActiveSize = result.Sizes.Active
	}
	return &info, nil
}
