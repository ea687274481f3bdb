package server

// ProtoVersion guards clients against silent wire-format drift.
const ProtoVersion = 1

type joinResponse struct {
	Ver      int         `json:"ver"`
	ID       string      `json:"id"`
	Actors   []Actor     `json:"actors"`
	Hotspots []Hotspot   `json:"hotspots"`
	Config   WorldConfig `json:"config"`
}

type stateMessage struct {
	Ver        int       `json:"ver"`
	Type       string    `json:"type"`
	Actors     []Actor   `json:"actors"`
	Hotspots   []Hotspot `json:"hotspots"`
	Tick       uint64    `json:"t"`
	ServerTime int64     `json:"serverTime"`
}

type clientMessage struct {
	Type   string  `json:"type"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	SentAt int64   `json:"sentAt"`
}

type heartbeatMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
}
