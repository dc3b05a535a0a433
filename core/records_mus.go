package core

import (
	com "github.com/mus-format/common-go"
	"github.com/mus-format/mus-go"
	slops "github.com/mus-format/mus-go/options/slice"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted types. IDs are fixed width so badger
// keys for a kind all have the same length. Timestamps are stored as Unix
// microseconds and decoded in UTC.
var (
	IDMUS             = idMUS{}
	KindMUS           = kindMUS{}
	TrainingRecordMUS = trainingRecordMUS{}
)

var (
	_ mus.Serializer[ID]             = IDMUS
	_ mus.Serializer[Kind]           = KindMUS
	_ mus.Serializer[TrainingRecord] = TrainingRecordMUS
)

// MaxVectorDimension bounds the vector length accepted when decoding, so a
// corrupt value cannot force a huge allocation.
const MaxVectorDimension = 1 << 16

var vectorMUS = ord.NewValidSliceSer[float32](raw.Float32,
	slops.WithLenValidator[float32](com.ValidatorFn[int](validateVectorLen)))

func validateVectorLen(length int) error {
	if length > MaxVectorDimension {
		return com.ErrTooLargeLength
	}
	return nil
}

type idMUS struct{}

func (s idMUS) Marshal(v ID, bs []byte) (n int) {
	return raw.Uint64.Marshal(uint64(v), bs)
}

func (s idMUS) Unmarshal(bs []byte) (v ID, n int, err error) {
	tmp, n, err := raw.Uint64.Unmarshal(bs)
	return ID(tmp), n, err
}

func (s idMUS) Size(v ID) (size int) {
	return raw.Uint64.Size(uint64(v))
}

func (s idMUS) Skip(bs []byte) (n int, err error) {
	return raw.Uint64.Skip(bs)
}

type kindMUS struct{}

func (s kindMUS) Marshal(v Kind, bs []byte) (n int) {
	return varint.PositiveInt.Marshal(int(v), bs)
}

func (s kindMUS) Unmarshal(bs []byte) (v Kind, n int, err error) {
	tmp, n, err := varint.PositiveInt.Unmarshal(bs)
	return Kind(tmp), n, err
}

func (s kindMUS) Size(v Kind) (size int) {
	return varint.PositiveInt.Size(int(v))
}

func (s kindMUS) Skip(bs []byte) (n int, err error) {
	return varint.PositiveInt.Skip(bs)
}

type trainingRecordMUS struct{}

func (s trainingRecordMUS) Marshal(v TrainingRecord, bs []byte) (n int) {
	n = IDMUS.Marshal(v.Id, bs)
	n += KindMUS.Marshal(v.Kind, bs[n:])
	n += ord.String.Marshal(v.Content, bs[n:])
	n += ord.String.Marshal(v.Question, bs[n:])
	n += ord.String.Marshal(v.SQL, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	return n + raw.TimeUnixMicroUTC.Marshal(v.InsertedAt, bs[n:])
}

func (s trainingRecordMUS) Unmarshal(bs []byte) (v TrainingRecord, n int, err error) {
	v.Id, n, err = IDMUS.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	v.Kind, n1, err = KindMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Content, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Question, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.SQL, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.InsertedAt, n1, err = raw.TimeUnixMicroUTC.Unmarshal(bs[n:])
	n += n1
	return
}

func (s trainingRecordMUS) Size(v TrainingRecord) (size int) {
	size = IDMUS.Size(v.Id)
	size += KindMUS.Size(v.Kind)
	size += ord.String.Size(v.Content)
	size += ord.String.Size(v.Question)
	size += ord.String.Size(v.SQL)
	size += vectorMUS.Size(v.Vector)
	return size + raw.TimeUnixMicroUTC.Size(v.InsertedAt)
}

func (s trainingRecordMUS) Skip(bs []byte) (n int, err error) {
	n, err = IDMUS.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = KindMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	for i := 0; i < 3; i++ {
		n1, err = ord.String.Skip(bs[n:])
		n += n1
		if err != nil {
			return
		}
	}
	n1, err = vectorMUS.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = raw.TimeUnixMicroUTC.Skip(bs[n:])
	n += n1
	return
}
