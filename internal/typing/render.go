package typing

import "fmt"

// Render formats the typing indicator line for the given entries, which
// must already be in arrival order. An empty slice renders as "".
func Render(entries []Entry) string {
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.DisplayName
	}

	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing…", names[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing…", names[0], names[1])
	case 3:
		return fmt.Sprintf("%s, %s and %s are typing…", names[0], names[1], names[2])
	default:
		return fmt.Sprintf("%s, %s and %d others are typing…", names[0], names[1], len(names)-2)
	}
}
