package affect

// orderedPair is a (first, second) pair of kinds where order matters.
type orderedPair [2]Kind

// multipliers holds the effectiveness of the first-acting kind against the
// second. Pairs not listed are neutral.
var multipliers = map[orderedPair]float64{
	{Water, Fire}:  0.5,
	{Fire, Ice}:    0.5,
	{Fire, Freeze}: 0.5,
	{Water, Rock}:  0.5,
	{Fire, Rock}:   0.5,
	{Ice, Rock}:    0.5,
	{Elect, Rock}:  0.5,
	{Water, Wind}:  0.5,
	{Fire, Wind}:   0.5,
	{Ice, Wind}:    0.5,
	{Elect, Wind}:  0.5,

	{Fire, Water}:  2.0,
	{Ice, Fire}:    2.0,
	{Freeze, Fire}: 2.0,
}

// Multiplier returns the consumption ratio of first against second.
func Multiplier(first, second Kind) float64 {
	if k, ok := multipliers[orderedPair{first, second}]; ok {
		return k
	}
	return 1.0
}
