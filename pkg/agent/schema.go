// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	xerrors "github.com/wongivan852/legal-ai-vault-sub000/pkg/errors"
)

// Task structs use the json tag for key names and jsonschema tags for
// documentation and required markers:
//
//	type legalTask struct {
//	    Question string `json:"question" jsonschema:"required,description=Legal question"`
//	    TopK     int    `json:"top_k,omitempty" jsonschema:"default=5,minimum=1"`
//	}

type taskSchema struct {
	schema   map[string]any
	required []string
}

var schemaCache sync.Map // reflect.Type -> *taskSchema

func schemaOf[T any]() (*taskSchema, error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := schemaCache.Load(typ); ok {
		return cached.(*taskSchema), nil
	}

	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	raw, err := json.Marshal(reflector.Reflect(new(T)))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %s: %w", typ, err)
	}

	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, fmt.Errorf("failed to convert schema for %s: %w", typ, err)
	}
	delete(schema, "$schema")
	delete(schema, "$id")

	ts := &taskSchema{schema: schema}
	if req, ok := schema["required"].([]any); ok {
		for _, r := range req {
			if s, ok := r.(string); ok {
				ts.required = append(ts.required, s)
			}
		}
	}
	sort.Strings(ts.required)

	actual, _ := schemaCache.LoadOrStore(typ, ts)
	return actual.(*taskSchema), nil
}

// TaskSchema returns the JSON schema of the task struct T.
func TaskSchema[T any]() map[string]any {
	ts, err := schemaOf[T]()
	if err != nil {
		return nil
	}
	return ts.schema
}

// DecodeTask checks the required keys of T and decodes task over into,
// which should already hold the defaults. Keys absent from task keep their
// default. A missing or empty required key yields a missing-field error
// naming the key.
func DecodeTask[T any](task Task, into *T) error {
	ts, err := schemaOf[T]()
	if err != nil {
		return err
	}

	for _, key := range ts.required {
		if isEmpty(task[key]) {
			return xerrors.New(xerrors.CodeMissingField,
				fmt.Sprintf("missing required field: %s", key),
				xerrors.WithMetadata("field", key))
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           into,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(map[string]any(task)); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid task")
	}
	return nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}
