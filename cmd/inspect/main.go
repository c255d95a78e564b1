package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dkt-lab/knowledge-tracing/go-trainer/internal/registry"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the run registry database")
	last := flag.Int("last", 20, "show N most recent runs")
	runID := flag.String("run", "", "show single run detail with checkpoints and events")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/runs.db [--last N] [--run id] [--json]")
		os.Exit(2)
	}

	store, err := registry.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *runID != "" {
		err = runDetailMode(store, *runID, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	RunID      string `json:"run_id"`
	ExpName    string `json:"exp_name"`
	ModelFname string `json:"model_fname"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

func runListMode(store *registry.Store, last int, jsonOut bool) error {
	runs, err := store.ListRuns(last)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stderr, "no runs found")
		return nil
	}

	rows := make([]listRow, len(runs))
	for i, r := range runs {
		rows[i] = listRow{
			RunID:      r.RunID,
			ExpName:    r.ExpName,
			ModelFname: r.ModelFname,
			Status:     r.Status,
			StartedAt:  r.StartedAt.Format("2006-01-02T15:04:05Z"),
		}
		if !r.FinishedAt.IsZero() {
			rows[i].FinishedAt = r.FinishedAt.Format("2006-01-02T15:04:05Z")
		}
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(rows)
	}

	fmt.Printf("%-36s  %-20s  %-20s  %-11s  %s\n", "RUN", "EXPERIMENT", "MODEL", "STATUS", "STARTED")
	fmt.Println(strings.Repeat("-", 110))
	for _, row := range rows {
		fmt.Printf("%-36s  %-20s  %-20s  %-11s  %s\n",
			row.RunID, row.ExpName, row.ModelFname, row.Status, row.StartedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detail struct {
	Run         registry.RunRecord          `json:"run"`
	Checkpoints []registry.CheckpointRecord `json:"checkpoints"`
	Events      []registry.Event            `json:"events"`
}

func runDetailMode(store *registry.Store, runID string, jsonOut bool) error {
	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	cks, err := store.Checkpoints(runID)
	if err != nil {
		return err
	}
	evs, err := store.Events(runID)
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(detail{Run: run, Checkpoints: cks, Events: evs})
	}

	fmt.Printf("run:      %s\n", run.RunID)
	fmt.Printf("exp:      %s (%s)\n", run.ExpName, run.ModelFname)
	fmt.Printf("status:   %s\n", run.Status)
	fmt.Printf("started:  %s\n", run.StartedAt.Format("2006-01-02T15:04:05Z"))
	if !run.FinishedAt.IsZero() {
		fmt.Printf("finished: %s\n", run.FinishedAt.Format("2006-01-02T15:04:05Z"))
	}
	fmt.Printf("config:   %s\n", run.ConfigJSON)

	fmt.Printf("\ncheckpoints (%d):\n", len(cks))
	for _, ck := range cks {
		fmt.Printf("  auc=%.4f epoch=%d  %s\n", ck.AUC, ck.Epoch, ck.Path)
	}

	fmt.Printf("\nevents (%d):\n", len(evs))
	for _, e := range evs {
		line := e.Name
		if e.Detail != "" {
			line += ": " + e.Detail
		}
		fmt.Printf("  %s  %s\n", e.CreatedAt.Format("15:04:05"), line)
	}
	return nil
}

// #endregion detail-mode
