package utils

import (
	"log"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	charm "github.com/charmbracelet/log"
)

var (
	Info  = log.New(os.Stdout, "[INFO] ", log.LstdFlags|log.Lshortfile)
	Error = log.New(os.Stderr, "[ERROR] ", log.LstdFlags|log.Lshortfile)
)

var Print *charm.Logger

func Init() {
	Print = charm.NewWithOptions(os.Stderr, charm.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	styles := charm.DefaultStyles()
	styles.Levels[charm.InfoLevel] = lipgloss.NewStyle().
		SetString("INFO").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#2E8B57")).
		Foreground(lipgloss.Color("#FFFFFF")).Bold(true)

	styles.Levels[charm.ErrorLevel] = lipgloss.NewStyle().
		SetString("ERROR").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#B22222")).
		Foreground(lipgloss.Color("#FFFFFF")).Bold(true)

	styles.Levels[charm.FatalLevel] = lipgloss.NewStyle().
		SetString("FATAL").
		Padding(0, 1, 0, 1).
		Background(lipgloss.Color("#000000")).
		Foreground(lipgloss.Color("#FF4500")).Bold(true)

	Print.SetStyles(styles)
}
