package hah

// attach nests n under the closest ancestor of cursor that sits above
// level, fixes n's level and returns n as the new cursor. Whitespace depth,
// not brackets, decides the structure: every construct goes through here.
func attach(cursor, n *Node, level int) *Node {
	parent := cursor.FindClosestLevel(level)
	parent.AddChild(n)
	n.Level = level
	return n
}
