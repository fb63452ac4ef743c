package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
)

type cellChecksumPayload struct {
	MaxPUCCHGrantsPerSlot int         `json:"max_pucch_grants_per_slot"`
	Cells                 []CellEntry `json:"cells"`
}

// CellsChecksum returns a short, stable checksum of the radio configuration
// (grant limit and cells, in index order). Logging, database and simulation
// settings do not contribute, so two runs with equal checksums faced the
// same pools.
//
// It is the first 6 hex characters of the MD5 over a canonical JSON form.
func CellsChecksum(cfg *DeploymentConfig) (string, error) {
	if cfg == nil {
		return "", nil
	}

	payload := cellChecksumPayload{
		MaxPUCCHGrantsPerSlot: cfg.MaxPUCCHGrantsPerSlot,
		Cells:                 cfg.GetCellsSorted(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])[:6], nil
}
