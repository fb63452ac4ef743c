package resmgr

import (
	"errors"
	"fmt"
)

var (
	ErrNoSRResources    = errors.New("cell has no SR PUCCH resources")
	ErrNoCSIResources   = errors.New("periodic CSI is configured but the cell has no CSI PUCCH resources")
	ErrCSIDisabled      = errors.New("UE requests periodic CSI on a cell without periodic CSI")
	ErrAlreadyAllocated = errors.New("UE already holds PUCCH resources")
)

// CellNotFoundError is returned when an operation names a cell index that has
// no resource pool.
type CellNotFoundError struct {
	CellIndex int
}

func (e CellNotFoundError) Error() string {
	return fmt.Sprintf("cell %d has no PUCCH resource pool", e.CellIndex)
}

// CellExistsError is returned when AddCell is called twice for the same index.
type CellExistsError struct {
	CellIndex int
}

func (e CellExistsError) Error() string {
	return fmt.Sprintf("cell %d already has a PUCCH resource pool", e.CellIndex)
}
