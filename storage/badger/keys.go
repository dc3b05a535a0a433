package badger

import (
	"github.com/poiesic/sqlrecall/core"
	"github.com/poiesic/sqlrecall/storage"
)

// Key prefixes for different data types
const (
	trainingRecordPrefix = "trnrec"
)

// makeKindPrefix returns the key prefix covering every record of kind.
// storage.AllKinds yields the prefix covering all training records.
// Format: prefix:kind:
func makeKindPrefix(kind core.Kind) []byte {
	if kind == storage.AllKinds {
		return []byte(trainingRecordPrefix + ":")
	}
	return []byte(trainingRecordPrefix + ":" + kind.String() + ":")
}

// makeRecordKey generates a key for a training record.
// Format: prefix:kind:id, with id in its fixed-width MUS encoding
func makeRecordKey(kind core.Kind, id core.ID) []byte {
	prefix := makeKindPrefix(kind)
	buf := make([]byte, 0, len(prefix)+8)
	buf = append(buf, prefix...)
	return append(buf, storage.MarshalID(id)...)
}
