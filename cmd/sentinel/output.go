package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/potooio/sentinel/internal/api"
	"github.com/potooio/sentinel/internal/eventlog"
	"github.com/potooio/sentinel/internal/pipeline"
	"github.com/potooio/sentinel/internal/types"
)

// VersionResult is the result of the version command.
type VersionResult struct {
	Version string `json:"version"`
}

// outputResult writes the result in the specified format.
func outputResult(w io.Writer, result interface{}, format string) error {
	switch format {
	case "json":
		return outputJSON(w, result)
	case "yaml":
		return outputYAML(w, result)
	case "table", "":
		return outputTable(w, result)
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func outputJSON(w io.Writer, result interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func outputYAML(w io.Writer, result interface{}) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func outputTable(out io.Writer, result interface{}) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch r := result.(type) {
	case api.Snapshot:
		return outputSnapshotTable(w, r)
	case pipeline.ReplayResult:
		return outputReplayTable(w, r)
	case VersionResult:
		fmt.Fprintf(w, "VERSION:\t%s\n", r.Version)
		return nil
	default:
		// Fall back to JSON for unknown types
		return outputJSON(out, result)
	}
}

func outputSnapshotTable(w *tabwriter.Writer, r api.Snapshot) error {
	fmt.Fprintf(w, "AS OF:\t%s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "STATIONS:\t%d (%d active)\n", r.Summary.TotalStations, r.Summary.ActiveStations)
	fmt.Fprintf(w, "CUSTOMERS:\t%d\n", r.Summary.TotalCustomers)
	fmt.Fprintf(w, "EVENTS:\t%d\n\n", r.Summary.TotalEvents)

	if len(r.Stations) > 0 {
		ids := make([]string, 0, len(r.Stations))
		for id := range r.Stations {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		fmt.Fprintln(w, "STATION\tSTATUS\tCUSTOMERS\tDWELL(s)\tLAST ACTIVITY")
		for _, id := range ids {
			s := r.Stations[id]
			last := "-"
			if s.LastActivity != nil {
				last = s.LastActivity.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%.1f\t%s\n", id, s.Status, s.CustomerCount, s.AverageDwellTime, last)
		}
		fmt.Fprintln(w)
	}

	if len(r.RecentEvents) > 0 {
		fmt.Fprintln(w, "RECENT EVENTS:")
		writeEntries(w, r.RecentEvents)
	}
	return nil
}

func outputReplayTable(w *tabwriter.Writer, r pipeline.ReplayResult) error {
	fmt.Fprintf(w, "RECORDS:\t%d\n", r.Records)
	fmt.Fprintf(w, "REJECTED:\t%d\n", r.Rejected)
	fmt.Fprintf(w, "EVENTS:\t%d\n\n", r.Summary.TotalEvents)

	if len(r.Summary.ByType) > 0 {
		names := make([]string, 0, len(r.Summary.ByType))
		for name := range r.Summary.ByType {
			names = append(names, string(name))
		}
		sort.Strings(names)

		fmt.Fprintln(w, "EVENT\tCOUNT")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%d\n", name, r.Summary.ByType[types.EventName(name)])
		}
		fmt.Fprintln(w)
	}

	if len(r.Summary.CriticalEvents) > 0 {
		fmt.Fprintln(w, "CRITICAL EVENTS:")
		writeEntries(w, r.Summary.CriticalEvents)
	}
	return nil
}

func writeEntries(w *tabwriter.Writer, entries []eventlog.Entry) {
	fmt.Fprintln(w, "ID\tTIME\tEVENT\tSTATION\tSEVERITY")
	for _, e := range entries {
		station := e.EventData.StationID
		if station == "" {
			station = "-"
		}
		severity := string(e.EventData.Severity)
		if severity == "" {
			severity = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.EventID, e.Timestamp.Format(time.RFC3339), e.EventData.EventName, station, severity)
	}
}
