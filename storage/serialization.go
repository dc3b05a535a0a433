// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"

	"github.com/poiesic/sqlrecall/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, core.IDMUS.Size(id))
	core.IDMUS.Marshal(id, buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	id, n, err := core.IDMUS.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrTruncatedData, err)
	}
	if n != len(data) {
		return 0, fmt.Errorf("%w: id uses %d of %d bytes", ErrTruncatedData, n, len(data))
	}
	return id, nil
}

// MarshalRecord serializes a TrainingRecord to bytes.
func MarshalRecord(record *core.TrainingRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("%w: record is nil", ErrSerializationFailed)
	}
	buf := make([]byte, core.TrainingRecordMUS.Size(*record))
	core.TrainingRecordMUS.Marshal(*record, buf)
	return buf, nil
}

// UnmarshalRecord deserializes a TrainingRecord from bytes.
func UnmarshalRecord(data []byte) (*core.TrainingRecord, error) {
	record, n, err := core.TrainingRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(data)-n)
	}
	if len(record.Vector) == 0 {
		record.Vector = nil
	}
	return &record, nil
}
