package util

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

// 定义颜色常量
const (
	ColorReset  = "\x1b[0m"
	ColorRed    = "\x1b[1;31m"
	ColorGreen  = "\x1b[1;32m"
	ColorYellow = "\x1b[1;33m"
	ColorBlue   = "\x1b[1;34m"
	ColorCyan   = "\x1b[1;36m"
)

var colors = map[string]string{
	"red":    ColorRed,
	"green":  ColorGreen,
	"yellow": ColorYellow,
	"blue":   ColorBlue,
	"cyan":   ColorCyan,
}

// PrintBanner 以统一颜色输出 ASCII banner 与版本行，未知颜色不着色
func PrintBanner(w io.Writer, text, version, color string) {
	ansi, ok := colors[color]
	if !ok {
		ansi = ColorReset
	}
	fig := figure.NewFigure(text, "", true)
	for _, line := range fig.Slicify() {
		fmt.Fprintln(w, ansi+line+ColorReset)
	}
	fmt.Fprintf(w, "%s version %s\n\n", text, version)
}
