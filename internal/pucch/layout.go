package pucch

// Layout describes the block structure of the cell resource list:
//
//	[set-0 block][SR block][set-1 block][CSI block]
//
// The translations below assume the list was built by BuildResourceList;
// nothing checks that at runtime.
type Layout struct {
	NofResSet0 int
	NofResSet1 int
	Set0Block  int
	SRBlock    int
	Set1Block  int
	CSIBlock   int
}

func (l Layout) Total() int {
	return l.Set0Block + l.SRBlock + l.Set1Block + l.CSIBlock
}

func (l Layout) srStart() int { return l.Set0Block }
func (l Layout) set1Start() int { return l.Set0Block + l.SRBlock }
func (l Layout) csiStart() int { return l.Set0Block + l.SRBlock + l.Set1Block }

// SRResourceID maps the n-th SR resource to its flat resource id.
func (l Layout) SRResourceID(ordinal int) int {
	return l.srStart() + ordinal
}

// SROrdinal is the inverse of SRResourceID.
func (l Layout) SROrdinal(resID int) (int, bool) {
	ord := resID - l.srStart()
	return ord, ord >= 0 && ord < l.SRBlock
}

// CSIResourceID maps the n-th CSI resource to its flat resource id.
func (l Layout) CSIResourceID(ordinal int) int {
	return l.csiStart() + ordinal
}

// CSIOrdinal is the inverse of CSIResourceID.
func (l Layout) CSIOrdinal(resID int) (int, bool) {
	ord := resID - l.csiStart()
	return ord, ord >= 0 && ord < l.CSIBlock
}

// Set0ResourceID returns the id of the k-th resource of set 0 in cell
// resource-set configuration cfgIdx.
func (l Layout) Set0ResourceID(cfgIdx, k int) int {
	return cfgIdx*l.NofResSet0 + k
}

// Set1ResourceID is the set-1 counterpart of Set0ResourceID.
func (l Layout) Set1ResourceID(cfgIdx, k int) int {
	return l.set1Start() + cfgIdx*l.NofResSet1 + k
}
