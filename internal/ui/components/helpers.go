// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import "strconv"

// toStr converts an int to its decimal string.
func toStr(n int) string {
	return strconv.Itoa(n)
}

// fmtNumber formats an int with thousands separators (1234567 -> "1,234,567").
func fmtNumber(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return "-" + fmtNumber(-n)
	}
	if len(s) <= 3 {
		return s
	}
	var out []byte
	rem := len(s) % 3
	if rem > 0 {
		out = append(out, s[:rem]...)
	}
	for i := rem; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}

// plural returns singular when n == 1, otherwise plural.
func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
