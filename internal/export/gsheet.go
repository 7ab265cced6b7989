package export

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/escolab/boletim/internal/app"
	"github.com/escolab/boletim/internal/store"
)

// GSheetExporter pushes persisted boletim rows into a class gradebook
// spreadsheet on a cron schedule. It reads the student id column the school
// office maintains and fills one grade column per configured offering.
type GSheetExporter struct {
	config    *app.Config
	store     store.BoletimStore
	scheduler *gocron.Scheduler
}

func NewGSheetExporter(config *app.Config, st store.BoletimStore) (*GSheetExporter, error) {
	ctx := context.Background()
	scheduler := gocron.NewScheduler(time.UTC)

	exporter := &GSheetExporter{
		config:    config,
		store:     st,
		scheduler: scheduler,
	}

	for className, configs := range config.GSheet {
		for _, cfg := range configs {
			svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
			if err != nil {
				return nil, fmt.Errorf("failed to create sheets service: %w", err)
			}

			name := className
			target := cfg
			_, err = scheduler.Cron(cfg.Schedule).Do(func() {
				if err := exporter.Export(svc, name, &target); err != nil {
					logger.Error.Printf("Export for %s failed: %v", name, err)
				}
			})
			if err != nil {
				return nil, fmt.Errorf("failed to schedule export: %w", err)
			}
		}
	}

	scheduler.StartAsync()
	return exporter, nil
}

func (e *GSheetExporter) Export(svc *sheets.Service, className string, cfg *app.GSheetConfig) error {
	readRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.StudentsRange)
	resp, err := svc.Spreadsheets.Values.Get(cfg.SheetID, readRange).Do()
	if err != nil {
		return fmt.Errorf("failed to read students: %w", err)
	}

	students := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			students = append(students, "")
			continue
		}
		student, _ := row[0].(string)
		students = append(students, student)
	}

	// one grade column per offering, row-aligned with the students column
	values := make([][]interface{}, len(students))
	for i := range values {
		values[i] = make([]interface{}, len(cfg.OfferingIDs))
		for j := range values[i] {
			values[i][j] = "-"
		}
	}

	for j, offeringID := range cfg.OfferingIDs {
		records, err := e.store.ListOfferingRecords(offeringID)
		if err != nil {
			return fmt.Errorf("failed to list records for offering %d: %w", offeringID, err)
		}

		grades := make(map[string]float64, len(records))
		for _, record := range records {
			grades[record.StudentID] = record.FinalGrade
		}

		for i, student := range students {
			if grade, ok := grades[student]; ok {
				values[i][j] = grade
			}
		}
	}

	writeRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.GradesOrigin)
	_, err = svc.Spreadsheets.Values.Update(cfg.SheetID, writeRange, &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("RAW").Do()
	if err != nil {
		return fmt.Errorf("failed to write grades: %w", err)
	}

	logger.Info.Printf("Exported %d offerings for class %s", len(cfg.OfferingIDs), className)
	return nil
}

func (e *GSheetExporter) Stop() {
	e.scheduler.Stop()
}
