package probe

// Peer is everything the local probe knows about one remote participant.
type Peer struct {
	EncodedPublicKey string   `json:"encoded_public_key"`
	Endpoints        []string `json:"endpoints"`
	BestEndpoint     string   `json:"best_endpoint"`
	OfflineCnt       uint64   `json:"offline_cnt"`
}

// IsOnline reports whether the peer has zero consecutive echo failures.
func (p Peer) IsOnline() bool {
	return p.OfflineCnt == 0
}

// clone returns a deep copy; Peer has no nested mutable sharing beyond the
// endpoints slice, so only that needs copying.
func (p Peer) clone() Peer {
	cp := p
	cp.Endpoints = append([]string(nil), p.Endpoints...)
	return cp
}

// Parameters is the immutable-per-run numeric configuration for a probe.
// Field names mirror the wire keys in SPEC_FULL.md §6 (cache keys are
// "netcoord::param::<field, snake_case>").
type Parameters struct {
	DimSize       uint64  `json:"dim_size"`
	SampleSize    uint64  `json:"sample_size"`
	DetectionSize uint64  `json:"detection_size"`
	BatchSize     uint64  `json:"batch_size"`
	Beta          float64 `json:"beta"`
	LR            float64 `json:"lr"`
	Patience      uint64  `json:"patience"`
	Factor        float64 `json:"factor"`
	MinLR         float64 `json:"min_lr"`
	MaxIters      uint64  `json:"max_iters"`
	MaxOfflineCnt uint64  `json:"max_offline_cnt"`
	Eps           float64 `json:"eps"`
}

// DefaultParameters mirrors the defaults in SPEC_FULL.md §6.
func DefaultParameters() Parameters {
	return Parameters{
		DimSize:       3,
		SampleSize:    10,
		DetectionSize: 5,
		BatchSize:     64,
		Beta:          9e5 / 1e6,
		LR:            1.0,
		Patience:      1000,
		Factor:        0.1,
		MinLR:         0.001,
		MaxIters:      10000,
		MaxOfflineCnt: 16,
		Eps:           1e-6,
	}
}

// Status is the runtime status of a probe's optimizer.
type Status struct {
	IsOptimizing bool    `json:"is_optimizing"`
	PrecisionMs  float64 `json:"precision_ms"`
	Epoch        uint64  `json:"epoch"`
}
