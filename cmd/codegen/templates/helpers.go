package templates

import (
	"strconv"
	"strings"
)

// prefixedStrings returns "T0, T1, ..." for prefix T.
func prefixedStrings(prefix string, count int) string {
	return indexed(count, func(i string) string {
		return prefix + i
	})
}

// readerCalls returns "r0.Get(), r1.Get(), ...".
func readerCalls(count int) string {
	return indexed(count, func(i string) string {
		return "r" + i + ".Get()"
	})
}

func indexed(count int, fn func(i string) string) string {
	var sb strings.Builder
	for i := 0; i < count; i++ {
		sb.WriteString(fn(strconv.Itoa(i)))
		if i < count-1 {
			sb.WriteString(", ")
		}
	}
	return sb.String()
}
