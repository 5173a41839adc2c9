package caption

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Title renders the overlay title for a segment: the project name in title
// case followed by the part number.
func Title(projectName string, segmentID int) string {
	part := fmt.Sprintf("Part %d", segmentID)
	name := strings.Join(strings.Fields(projectName), " ")
	if name == "" {
		return part
	}
	return cases.Title(language.English).String(name) + " " + part
}
