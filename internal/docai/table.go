package docai

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/olekukonko/tablewriter"
)

// PrintProcessorTypes writes a sorted table of processor types followed by a count.
func PrintProcessorTypes(w io.Writer, types []*documentaipb.ProcessorType) {
	sorted := SortProcessorTypes(types)
	rows := make([][]string, 0, len(sorted))
	for _, pt := range sorted {
		rows = append(rows, []string{
			pt.GetType(),
			pt.GetCategory(),
			allowCreation(pt.GetAllowCreation()),
			locations(pt),
		})
	}
	renderTable(w, []string{"type", "category", "allow_creation", "locations"}, rows)
	fmt.Fprintf(w, "→ Processor types: %d\n", len(sorted))
}

// PrintProcessors writes a table of processors sorted by display name followed by a count.
func PrintProcessors(w io.Writer, processors []*documentaipb.Processor) {
	sorted := SortProcessors(processors)
	rows := make([][]string, 0, len(sorted))
	for _, p := range sorted {
		rows = append(rows, []string{p.GetDisplayName(), p.GetType(), p.GetState().String()})
	}
	renderTable(w, []string{"display_name", "type", "state"}, rows)
	fmt.Fprintf(w, "→ Processors: %d\n", len(sorted))
}

func allowCreation(allowed bool) string {
	if allowed {
		return "True"
	}
	return "False"
}

func locations(pt *documentaipb.ProcessorType) string {
	ids := make([]string, 0, len(pt.GetAvailableLocations()))
	for _, loc := range pt.GetAvailableLocations() {
		ids = append(ids, loc.GetLocationId())
	}
	sort.Strings(ids)
	return strings.Join(ids, ", ")
}

func renderTable(w io.Writer, header []string, rows [][]string) {
	if len(rows) == 0 {
		placeholder := make([]string, len(header))
		for i := range placeholder {
			placeholder[i] = "-"
		}
		rows = [][]string{placeholder}
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}
