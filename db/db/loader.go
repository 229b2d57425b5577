package db

import (
	"github.com/vikstrous/dataloadgen"
)

// SettlementDataLoader batches entry reads issued close together into one store call.
// Loaders cache what they load, so create one per restore.
type SettlementDataLoader struct {
	GetEntry *dataloadgen.Loader[EntryKey, Entry]
}

func NewSettlementDataLoader(dbWrapper SettlementDBWrapper) *SettlementDataLoader {
	return &SettlementDataLoader{
		GetEntry: dataloadgen.NewMappedLoader(dbWrapper.DataLoaderGetEntries),
	}
}
