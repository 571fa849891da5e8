package homa

//
// Priority Tagger (§4.B): maps a 0..7 priority into the link-layer tag
// applied to a packet. The mapping is not identity: slots 0 and 1 are
// swapped because the underlying link-layer standard reserves 0 as a
// middle priority. This is encoded as a table, not arithmetic, per the
// Design Notes: the swap is not derivable from a formula.
//

// priorityTagTable maps a 0..7 Homa priority to the link-layer tag
// value written onto the frame.
var priorityTagTable = [8]uint8{
	0: 1,
	1: 0,
	2: 2,
	3: 3,
	4: 4,
	5: 5,
	6: 6,
	7: 7,
}

// PriorityTag returns the link-layer tag for priority p (0..7). Values
// outside that range are clamped to the nearest valid priority.
func PriorityTag(p uint8) uint8 {
	if p > MaxPriority {
		p = MaxPriority
	}
	return priorityTagTable[p]
}

// TagPacket writes the link-layer priority tag for priority p onto pkt,
// marking it as carrying a priority-bearing VLAN header.
func TagPacket(pkt *Packet, p uint8) {
	pkt.Priority = PriorityTag(p)
}
