package content

import "strings"

// LinkButton is an inline URL button.
type LinkButton struct {
	Text string
	URL  string
}

// ParseButtonsConfig parses the admin button format: one keyboard row per line,
// buttons in a row separated by commas, each written as "label | url".
func ParseButtonsConfig(config string) [][]LinkButton {
	var rows [][]LinkButton
	for _, line := range strings.Split(strings.TrimSpace(config), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row []LinkButton
		for _, raw := range strings.Split(line, ",") {
			label, url, ok := strings.Cut(raw, "|")
			if !ok {
				continue
			}
			label, url = strings.TrimSpace(label), strings.TrimSpace(url)
			if label == "" || url == "" {
				continue
			}
			row = append(row, LinkButton{Text: label, URL: url})
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	return rows
}
