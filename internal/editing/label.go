/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editing

import (
	"regexp"
	"strconv"
	"unicode"
	"unicode/utf8"

	"reeleditor/internal/stage"
)

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// LabelBase is the label prefix for objects of module exportID: "x/foo-bar.reel" gives "fooBar".
func LabelBase(exportID string) string {
	base := lowerFirst(stage.ModuleName(exportID))
	if base == "" {
		return "object"
	}
	return base
}

// nextLabel returns base followed by one more than the highest index already used with that
// base, compared case-insensitively. Freed indices are never reused.
func nextLabel(base string, labels []string) string {
	re := regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(base) + `(\d+)$`)
	max := 0
	for _, l := range labels {
		if m := re.FindStringSubmatch(l); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	}
	return base + strconv.Itoa(max+1)
}
