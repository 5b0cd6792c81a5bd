// Copyright 2024-2026 Aiku AI

// Package termui prints hidetag status reports for a human watching the
// terminal.
package termui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/skip2/go-qrcode"

	"github.com/IhsanDevs/whatsapp-hidetag/pkg/hidetag"
)

const logo = ` _   _ _     _      _
| | | (_) __| | ___| |_ __ _  __ _
| |_| | |/ _` + "`" + ` |/ _ \ __/ _` + "`" + ` |/ _` + "`" + ` |
|  _  | | (_| |  __/ || (_| | (_| |
|_| |_|_|\__,_|\___|\__\__,_|\__, |
                             |___/  Whatsapp`

const (
	usageEnglish = `Once the QR code is scanned and connected to your WhatsApp account, you can send any text message.
To trigger the hidetag, send a message to a group containing any emoji.`
	usageIndonesian = `Setelah kode QR di-scan dan telah terhubung ke akun whatsapp kamu, kamu bisa mengirim pesan text apapun.
Untuk mentrigger hidetag, kirim pesan ke sebuah grup dengan mengandung emoji apa saja.`
)

type palette struct {
	logo, authorKey, authorVal, heading, usage *color.Color
	info, challenge, connecting, open, warn, fail *color.Color
}

func newPalette(noColor bool) palette {
	p := palette{
		logo:       color.New(color.FgHiMagenta),
		authorKey:  color.New(color.FgYellow),
		authorVal:  color.New(color.FgHiYellow),
		heading:    color.New(color.FgMagenta, color.Bold),
		usage:      color.New(color.FgHiBlue),
		info:       color.New(color.FgBlue),
		challenge:  color.New(color.FgHiMagenta),
		connecting: color.New(color.FgCyan),
		open:       color.New(color.FgGreen),
		warn:       color.New(color.FgYellow),
		fail:       color.New(color.FgRed),
	}
	if noColor {
		for _, c := range []*color.Color{
			p.logo, p.authorKey, p.authorVal, p.heading, p.usage,
			p.info, p.challenge, p.connecting, p.open, p.warn, p.fail,
		} {
			c.DisableColor()
		}
	}
	return p
}

// Console is a hidetag.StatusSink writing coloured lines to a terminal.
// Pairing codes are rendered as QR codes below the banner.
type Console struct {
	out     io.Writer
	colors  palette
	version string

	mu sync.Mutex
}

var _ hidetag.StatusSink = (*Console)(nil)

// NewConsole creates a Console writing to out. version is shown in the
// banner when non-empty.
func NewConsole(out io.Writer, version string, noColor bool) *Console {
	return &Console{
		out:     out,
		colors:  newPalette(noColor),
		version: version,
	}
}

// Banner prints the program name, author and usage instructions.
func (c *Console) Banner() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeBanner()
}

func (c *Console) writeBanner() {
	var sb strings.Builder
	sb.WriteString(c.colors.logo.Sprint(logo))
	if c.version != "" {
		sb.WriteString(" " + c.version)
	}
	sb.WriteString("\n\n")
	sb.WriteString(c.colors.authorKey.Sprint("Author: ") + c.colors.authorVal.Sprint("Ihsan Devs") + "\n\n")
	sb.WriteString(c.colors.heading.Sprint("How to use:") + "\n")
	sb.WriteString(c.colors.usage.Sprint(usageEnglish) + "\n\n")
	sb.WriteString(c.colors.heading.Sprint("Cara pakai:") + "\n")
	sb.WriteString(c.colors.usage.Sprint(usageIndonesian) + "\n\n\n")
	_, _ = io.WriteString(c.out, sb.String())
}

func (c *Console) Report(level hidetag.Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch level {
	case hidetag.LevelChallenge:
		c.writeBanner()
		c.writeQR(message)
	case hidetag.LevelInfo:
		c.line(c.colors.info, "ℹ", message)
	case hidetag.LevelConnecting:
		c.line(c.colors.connecting, "…", message)
	case hidetag.LevelOpen:
		c.line(c.colors.open, "✔", message)
	case hidetag.LevelWarning:
		c.line(c.colors.warn, "⚠", message)
	case hidetag.LevelError:
		c.line(c.colors.fail, "✖", message)
	default:
		c.line(c.colors.info, "-", message)
	}
}

func (c *Console) line(col *color.Color, symbol, message string) {
	_, _ = fmt.Fprintf(c.out, "%s %s\n", col.Sprint(symbol), message)
}

func (c *Console) writeQR(code string) {
	rendered, err := RenderQR(code)
	if err != nil {
		c.line(c.colors.fail, "✖", fmt.Sprintf("Failed to render QR code: %v", err))
		return
	}
	_, _ = io.WriteString(c.out, c.colors.challenge.Sprint(rendered)+"\n")
}

// RenderQR renders code as a QR code using half-block characters so it fits
// in a normal terminal.
func RenderQR(code string) (string, error) {
	qr, err := qrcode.New(code, qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return qr.ToSmallString(false), nil
}
