// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jsonfix

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/gopher-lua"
)

var valueRegexp = regexp.MustCompile(`(?m)^\s*".+?"\s*:\s*(.+?),?\s*$`)

// FixupBrokenJSON takes a string that is supposed to be JSON, but erroneously contains expressions where there
// should be numbers (the model likes to write things like `"latitude": 10.77 + 0.002`), and evaluates those
// expressions. Only one key per line is handled. Input that already parses is returned unchanged.
func FixupBrokenJSON(j string) string {
	var throwaway any
	if err := json.Unmarshal([]byte(j), &throwaway); err == nil {
		return j
	}
	values := valueRegexp.FindAllStringSubmatchIndex(j, -1)
	var sb strings.Builder
	lastIndex := 0
	for _, v := range values {
		sb.WriteString(j[lastIndex:v[2]])
		expression := j[v[2]:v[3]]
		if err := json.Unmarshal([]byte(expression), &throwaway); err != nil {
			if replacement, ok := evalExpression(expression); ok {
				log.Printf("Replacing expression %q with its value %q", expression, replacement)
				expression = replacement
			}
		}
		sb.WriteString(expression)
		lastIndex = v[3]
	}
	sb.WriteString(j[lastIndex:])
	return sb.String()
}

// evalExpression evaluates an arithmetic expression in a sandboxed lua state with only the math library available.
// It only reports success for results that are valid JSON scalars.
func evalExpression(expression string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	l := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	defer l.Close()
	l.SetContext(ctx)
	if err := l.CallByParam(lua.P{
		Fn:      l.NewFunction(lua.OpenMath),
		NRet:    0,
		Protect: true,
	}, lua.LString(lua.MathLibName)); err != nil {
		log.Printf("Couldn't open lua math library: %v", err)
		return expression, false
	}
	if err := l.DoString("return " + expression); err != nil {
		log.Printf("Couldn't evaluate %q using lua. Error: %v", expression, err)
		return expression, false
	}
	switch v := toGoValue(l.Get(-1)).(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return expression, false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return expression, false
	}
}

func toGoValue(lv lua.LValue) any {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		f := float64(v)
		if math.Abs(f) < 1e-14 {
			return 0
		}
		return f
	default:
		return v
	}
}
