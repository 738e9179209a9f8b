package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"telemetry/internal/types"
)

// DiagnosticsWriter persists diagnostics snapshots into the normalized
// machine, process and assembly tables. Assemblies are written as fresh rows
// on every call; unlike event sources they are not de-duplicated.
type DiagnosticsWriter struct {
	pool     TxBeginner
	settings Settings
	newID    func() uuid.UUID
}

// NewDiagnosticsWriter creates a DiagnosticsWriter.
func NewDiagnosticsWriter(pool TxBeginner, settings Settings) *DiagnosticsWriter {
	return &DiagnosticsWriter{pool: pool, settings: settings, newID: uuid.New}
}

// Persist writes one snapshot in a single transaction:
//  1. machine_details
//  2. process_details
//  3. diagnostics, referencing both
//  4. per assembly, in input order: assembly_details then its cross reference
//
// The canonical machine name and total physical memory are derived before
// the transaction starts, so a missing map key fails without any I/O.
func (w *DiagnosticsWriter) Persist(ctx context.Context, item *types.DiagnosticsTelemetry) error {
	if item == nil {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"diagnostics item is required", nil,
			map[string]any{"field": "item"},
		)
	}

	machine := item.MachineDetails
	machineName, err := machine.CanonicalMachineName()
	if err != nil {
		return err
	}
	physicalMemory, err := machine.TotalPhysicalMemoryInGb()
	if err != nil {
		return err
	}

	machineID, processID, diagnosticsID := w.newID(), w.newID(), w.newID()

	statements := []insert{
		{"machine_details", []column{
			col("id", machineID),
			textCol("machine_name", machineName),
			textCol("machine_name_map_json", machine.MachineNameKindToNameMap),
			col("processor_count", machine.ProcessorCount),
			col("physical_memory_in_gb", physicalMemory),
			textCol("memory_map_json", machine.MemoryKindToValueInGbMap),
			col("operating_system_is_64_bit", machine.OperatingSystemIs64Bit),
			textCol("operating_system_json", machine.OperatingSystem),
			textCol("clr_version", machine.RuntimeVersion),
		}},
		{"process_details", []column{
			col("id", processID),
			textCol("name", item.ProcessDetails.Name),
			textCol("file_path", item.ProcessDetails.FilePath),
			textCol("file_version", item.ProcessDetails.FileVersion),
			textCol("product_version", item.ProcessDetails.ProductVersion),
			col("running_as_admin", item.ProcessDetails.RunningAsAdmin),
		}},
		{"diagnostics", []column{
			col("id", diagnosticsID),
			col("machine_details_id", machineID),
			col("process_details_id", processID),
			col("sampled_utc", item.SampledUTC.UTC()),
		}},
	}

	for _, assembly := range item.ProcessSiblingAssemblies {
		assemblyID := w.newID()
		statements = append(statements,
			insert{"assembly_details", []column{
				col("id", assemblyID),
				textCol("name", assembly.Name),
				textCol("version_json", assembly.Version),
				textCol("file_path", assembly.FilePath),
				textCol("framework_version", assembly.FrameworkVersion),
			}},
			insert{"diagnostics_assembly_cross_reference", []column{
				col("id", w.newID()),
				col("diagnostics_id", diagnosticsID),
				col("assembly_details_id", assemblyID),
			}},
		)
	}

	return InTx(ctx, w.pool, w.settings.TxOptions(), func(tx pgx.Tx) error {
		for _, stmt := range statements {
			if err := execInsert(ctx, tx, w.settings, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
