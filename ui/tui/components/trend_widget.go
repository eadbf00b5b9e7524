package components

import (
	"math"

	"pulsecheck/ui/tui/styles"

	"github.com/NimbleMarkets/ntcharts/canvas"
	"github.com/NimbleMarkets/ntcharts/linechart"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// maxPoints bounds the history kept by the widget.
const maxPoints = 31

// TrendWidget draws a latency series (ms) as a braille line chart.
type TrendWidget struct {
	Title   string
	Chart   linechart.Model
	History []float64
	Width   int
	Height  int
	maxY    float64
}

func NewTrendWidget(title string, width, height int) *TrendWidget {
	// width, height, minX, maxX, minY, maxY
	return &TrendWidget{
		Title:   title,
		Chart:   linechart.New(width, height, 0, maxPoints-1, 0, 100),
		History: make([]float64, 0, maxPoints),
		Width:   width,
		Height:  height,
		maxY:    100,
	}
}

func (c *TrendWidget) Init() tea.Cmd {
	return nil
}

// Push appends one point, dropping the oldest beyond maxPoints.
func (c *TrendWidget) Push(value float64) {
	c.History = append(c.History, value)
	if len(c.History) > maxPoints {
		c.History = c.History[1:]
	}
}

// SetHistory replaces the series, keeping the newest maxPoints values.
func (c *TrendWidget) SetHistory(values []float64) {
	if len(values) > maxPoints {
		values = values[len(values)-maxPoints:]
	}
	c.History = append(c.History[:0], values...)
}

func (c *TrendWidget) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return c, nil
}

func (c *TrendWidget) Resize(w, h int) {
	c.Width = w
	c.Height = h
	c.Chart.Resize(w, h)
}

// YMax is the chart's upper bound: the series max rounded up to a multiple of 100ms.
func (c *TrendWidget) YMax() float64 {
	top := 100.0
	for _, v := range c.History {
		if v > top {
			top = math.Ceil(v/100) * 100
		}
	}
	return top
}

func (c *TrendWidget) View() string {
	if top := c.YMax(); top != c.maxY {
		c.maxY = top
		c.Chart = linechart.New(c.Width, c.Height, 0, maxPoints-1, 0, top)
	}
	c.Chart.Clear()
	for i := 0; i < len(c.History)-1; i++ {
		c.Chart.DrawBrailleLine(
			canvas.Float64Point{X: float64(i), Y: c.History[i]},
			canvas.Float64Point{X: float64(i + 1), Y: c.History[i+1]},
		)
	}
	c.Chart.DrawXYAxisAndLabel()

	return styles.CardStyle.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.NewStyle().Bold(true).Render(c.Title),
			c.Chart.View(),
		),
	)
}
