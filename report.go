package tickpack

import "time"

// Report describes the outcome of a decode.
type Report struct {
	OK      bool      `json:"ok"`
	Kind    ErrorKind `json:"kind"`
	Err     error     `json:"-"`
	Message string    `json:"error,omitempty"`
	// Offset is the byte offset of the failure, -1 if unknown.
	Offset int `json:"offset"`
	// Tick is the tick index of the failure, -1 outside tick records.
	Tick int `json:"tick"`

	Size    int `json:"size"`
	Symbols int `json:"symbols"`
	Ticks   int `json:"ticks"`
	// Changes counts, per symbol, the ticks in which the symbol changed.
	Changes  []int         `json:"changes,omitempty"`
	Tiers    TierCounts    `json:"tiers"`
	Duration time.Duration `json:"duration_ns"`
}

// TierCounts counts decoded fields per delta tier.
type TierCounts struct {
	Small    int `json:"small"`
	Medium   int `json:"medium"`
	Absolute int `json:"absolute"`
}

func newReport(data []byte, res *decodeResult, err error, d time.Duration) *Report {
	r := &Report{
		OK:       err == nil,
		Kind:     KindOf(err),
		Err:      err,
		Offset:   -1,
		Tick:     -1,
		Size:     len(data),
		Duration: d,
	}
	if err != nil {
		r.Message = err.Error()
		r.Offset, r.Tick = errorPosition(err)
	}
	if res == nil {
		return r
	}
	if res.layout != nil {
		r.Symbols = len(res.layout.header.symbols)
	}
	if res.series != nil {
		r.Ticks = res.series.Len()
		r.Changes = res.changes
		r.Tiers = TierCounts{
			Small:    res.tiers.Small,
			Medium:   res.tiers.Medium,
			Absolute: res.tiers.Absolute,
		}
	}
	return r
}
