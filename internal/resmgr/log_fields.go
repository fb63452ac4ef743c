package resmgr

import (
	"sort"

	"github.com/sirupsen/logrus"
)

func ueLogFields(ue *UECellConfig) logrus.Fields {
	return logrus.Fields{
		"cell_index": ue.CellIndex,
		"ue_index":   ue.UEIndex,
	}
}

func cellLogFields(p *cellPool) logrus.Fields {
	fields := logrus.Fields{
		"cell_index": p.index,
		"sr_period":  p.srPeriod,
		"lcm_period": p.lcmPeriod,
		"max_grants": p.maxGrants,
	}
	if p.csiPeriod > 0 {
		fields["csi_period"] = p.csiPeriod
	}
	return fields
}

func uniqueSorted(vals []int) []int {
	cp := append([]int(nil), vals...)
	sort.Ints(cp)
	out := make([]int, 0, len(cp))
	for i, v := range cp {
		if i > 0 && cp[i-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}
