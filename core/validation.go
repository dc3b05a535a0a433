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


package core

import (
	"fmt"
	"strings"
)

// Validate checks a TrainingItem according to domain rules.
//
// Validation rules:
//   - Kind must be known
//   - DDL and documentation text must not be blank
//   - Question/SQL pairs need both a question and SQL
func (i TrainingItem) Validate() error {
	if err := ValidateKind(i.kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrainingItem, err)
	}

	switch i.kind {
	case KindQuestionSQL:
		if strings.TrimSpace(i.question) == "" {
			return fmt.Errorf("%w: %w", ErrInvalidTrainingItem, ErrEmptyQuestion)
		}
		if strings.TrimSpace(i.sql) == "" {
			return fmt.Errorf("%w: %w", ErrInvalidTrainingItem, ErrEmptySQL)
		}
	default:
		if strings.TrimSpace(i.text) == "" {
			return fmt.Errorf("%w: %w", ErrInvalidTrainingItem, ErrEmptyContent)
		}
	}
	return nil
}

// ValidateTrainingRecord validates a TrainingRecord before it is persisted.
//
// NOT validated:
//   - Vector (backends skip records without one during search)
//   - ID (always derived from content)
func ValidateTrainingRecord(record *TrainingRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidTrainingRecord)
	}

	if err := ValidateKind(record.Kind); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTrainingRecord, err)
	}

	if record.Content == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTrainingRecord, ErrEmptyContent)
	}

	return nil
}

// ValidateKind validates that a Kind has a known value.
func ValidateKind(kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: value %d", ErrUnknownKind, kind)
	}
	return nil
}
