package affect

// orderTable lists, for each pair of kinds that may coexist on a target, the
// existing affects an incoming kind reacts with and in which order. The pair
// key is unordered; the lists are not.
var orderTable = map[kindPair]map[Kind][]Kind{
	pairOf(Water, Elect): {
		Ice:  {Elect, Water},
		Fire: {Elect, Water},
		Wind: {Elect, Water},
		Rock: {Elect, Water},
	},
	pairOf(Water, Freeze): {
		Ice:   {Water},
		Fire:  {Freeze},
		Elect: {Freeze},
		Wind:  {Water, Freeze},
		Rock:  {Freeze, Water},
	},
	pairOf(Ice, Freeze): {
		Water: {Ice},
		Fire:  {Ice, Freeze},
		Elect: {Ice, Freeze},
		Wind:  {Ice, Freeze},
		Rock:  {Freeze, Ice},
	},
}

// ResolveOrder returns the kinds in s that incoming must react with, in
// order. An empty state yields an empty order and a single affect yields
// itself. For two affects the order table decides; ok is false when it has
// no entry, and always for three or more affects.
func ResolveOrder(s State, incoming Kind) (order []Kind, ok bool) {
	kinds := s.Kinds()
	switch len(kinds) {
	case 0:
		return nil, true
	case 1:
		return kinds, true
	case 2:
		byIncoming, found := orderTable[pairOf(kinds[0], kinds[1])]
		if !found {
			return nil, false
		}
		entry, found := byIncoming[incoming]
		if !found {
			return nil, false
		}
		return append([]Kind(nil), entry...), true
	default:
		return nil, false
	}
}
