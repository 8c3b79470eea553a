package commands

import (
	"encoding/json"
	"fmt"

	"github.com/idsov/recordstore/src/record"
	"github.com/idsov/recordstore/src/records"
	"github.com/idsov/recordstore/src/recordstore"
	"github.com/idsov/recordstore/src/service"
	"github.com/spf13/cobra"
)

var previousHash string

//NewRecordCmd returns the command grouping the record operations. They work
//on the local badger database, which must not be held by a running node.
func NewRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Read and write records in the local database",
	}

	update := newRecordSubCmd("update [original] [json]", "Add a revision to a record", cobra.ExactArgs(2), updateRecord)
	update.Flags().StringVar(&previousHash, "previous", "", "Revision the update is based on (default latest)")

	cmd.AddCommand(
		newRecordSubCmd("create [json]", "Create a record", cobra.ExactArgs(1), createRecord),
		newRecordSubCmd("original [hash]", "Show the original revision of a record", cobra.ExactArgs(1), readOriginal),
		newRecordSubCmd("latest [hash]", "Show the latest revision of a record", cobra.ExactArgs(1), readLatest),
		update,
		newRecordSubCmd("delete [hash]", "Delete a record or a revision", cobra.ExactArgs(1), deleteRecord),
		newRecordSubCmd("list", "List the records of the collection", cobra.NoArgs, listRecords),
		newRecordSubCmd("revisions [hash]", "Show every revision of a record", cobra.ExactArgs(1), allRevisions),
		newRecordSubCmd("deletes [hash]", "Show the deletes targeting an action", cobra.ExactArgs(1), allDeletes),
		newRecordSubCmd("oldest-delete [hash]", "Show the earliest delete targeting an action", cobra.ExactArgs(1), oldestDelete),
		newRecordSubCmd("details [hash]", "Show an action with its entry, updates and deletes", cobra.ExactArgs(1), recordDetails),
	)

	return cmd
}

type recordOp func(rs *records.Service, args []string) (interface{}, error)

func newRecordSubCmd(use, short string, args cobra.PositionalArgs, op recordOp) *cobra.Command {
	cmd := &cobra.Command{
		Use:     use,
		Short:   short,
		Args:    args,
		PreRunE: loadRecordConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRecords(cmd, args, op)
		},
	}
	AddStoreFlags(cmd)
	return cmd
}

func loadRecordConfig(cmd *cobra.Command, args []string) error {
	if err := loadConfig(cmd, args); err != nil {
		return err
	}
	_config.Store = true
	_config.NoService = true
	return nil
}

// withRecords opens the store, applies op and prints its result as JSON.
func withRecords(cmd *cobra.Command, args []string, op recordOp) error {
	engine := recordstore.NewRecordStore(_config)

	if err := engine.Init(); err != nil {
		return err
	}
	defer engine.Shutdown()

	res, err := op(engine.Records, args)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func parseRecord(arg string) (record.HealthRecord, error) {
	var r record.HealthRecord
	if err := json.Unmarshal([]byte(arg), &r); err != nil {
		return r, fmt.Errorf("parsing record: %s", err)
	}
	return r, nil
}

func createRecord(rs *records.Service, args []string) (interface{}, error) {
	r, err := parseRecord(args[0])
	if err != nil {
		return nil, err
	}

	hash, err := rs.CreateRecord(r)
	return service.HashResponse{Hash: hash}, err
}

func readOriginal(rs *records.Service, args []string) (interface{}, error) {
	entry, err := rs.ReadOriginal(args[0])
	if err != nil {
		return nil, err
	}
	return service.NewEntryView(entry)
}

func readLatest(rs *records.Service, args []string) (interface{}, error) {
	entry, err := rs.ReadLatest(args[0])
	if err != nil {
		return nil, err
	}
	return service.NewEntryView(entry)
}

func updateRecord(rs *records.Service, args []string) (interface{}, error) {
	r, err := parseRecord(args[1])
	if err != nil {
		return nil, err
	}

	previous := previousHash
	if previous == "" {
		latest, err := rs.LatestAction(args[0])
		if err != nil {
			return nil, err
		}
		previous = latest.Hex()
	}

	hash, err := rs.UpdateRecord(args[0], previous, r)
	return service.HashResponse{Hash: hash}, err
}

func deleteRecord(rs *records.Service, args []string) (interface{}, error) {
	hash, err := rs.DeleteRecord(args[0])
	return service.HashResponse{Hash: hash}, err
}

func listRecords(rs *records.Service, args []string) (interface{}, error) {
	return rs.ListAllRecords(), nil
}

func allRevisions(rs *records.Service, args []string) (interface{}, error) {
	revisions, err := rs.GetAllRevisions(args[0])
	if err != nil {
		return nil, err
	}
	return service.NewRevisionViews(revisions)
}

func allDeletes(rs *records.Service, args []string) (interface{}, error) {
	deletes, err := rs.GetAllDeletes(args[0])
	if err != nil {
		return nil, err
	}
	return service.NewActionViews(deletes), nil
}

func oldestDelete(rs *records.Service, args []string) (interface{}, error) {
	action, err := rs.GetOldestDelete(args[0])
	if err != nil {
		return nil, err
	}
	return service.NewActionView(action), nil
}

func recordDetails(rs *records.Service, args []string) (interface{}, error) {
	details, err := rs.GetRecordDetails(args[0])
	if err != nil {
		return nil, err
	}
	return service.NewDetailsView(details)
}
