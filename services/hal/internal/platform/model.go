package platform

// SimModel is reported as the board model when running simulated.
const SimModel = "simulator"

// BoardModel returns the device-tree model string of the host, e.g.
// "Raspberry Pi 4 Model B Rev 1.4", or SimModel when sim is set.
func BoardModel(sim bool) string {
	if sim {
		return SimModel
	}
	if m := hostModel(); m != "" {
		return m
	}
	return "unknown board"
}
