package google

import (
	"fmt"
	"strings"

	ports "tutordash/internal/sheets"
)

// valuesToTable converts the values matrix returned by the Sheets API into a
// table. The API omits trailing empty cells, so rows may be shorter than the
// header.
func valuesToTable(values [][]interface{}) (ports.Table, error) {
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		rows = append(rows, toStrings(v))
	}
	return ports.TableFromValues(rows)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
