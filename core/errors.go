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

import "errors"

// Domain validation errors
var (
	// ErrInvalidTrainingItem indicates a TrainingItem failed validation.
	ErrInvalidTrainingItem = errors.New("invalid training item")

	// ErrInvalidTrainingRecord indicates a TrainingRecord failed validation.
	ErrInvalidTrainingRecord = errors.New("invalid training record")

	// ErrUnknownKind indicates a kind value outside the known set.
	ErrUnknownKind = errors.New("unknown training kind")

	// ErrEmptyContent indicates the DDL or documentation text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyQuestion indicates the question of a question/SQL pair is empty.
	ErrEmptyQuestion = errors.New("question cannot be empty")

	// ErrEmptySQL indicates the SQL of a question/SQL pair is empty.
	ErrEmptySQL = errors.New("sql cannot be empty")
)
