package tiler

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrThresholdOrder = errors.New("thresholds must satisfy create <= display < delete")

// Distances are fractions of the planet radius, measured from the viewpoint to the tile center
type LevelThresholds struct {
	Create  float64 // children are created below this distance
	Display float64 // children replace the tile below this distance
	Delete  float64 // children are deleted above this distance
	MinView float64 // visibility range hint forwarded to the scene
}

type ThresholdTable struct {
	Levels []LevelThresholds
}

// Display distance halves with every level, creation starts slightly closer and deletion
// waits until the viewpoint is well past the display distance.
func DefaultThresholdTable(maxLevel int) *ThresholdTable {
	if maxLevel < 0 {
		maxLevel = 0
	}
	table := &ThresholdTable{Levels: make([]LevelThresholds, maxLevel+1)}
	for level := range table.Levels {
		scale := math.Pow(0.5, float64(level))
		display := 1.5 * scale
		table.Levels[level] = LevelThresholds{
			Create:  0.95 * display,
			Display: display,
			Delete:  1.4 * display,
			MinView: 0.01 * scale,
		}
	}
	return table
}

// Returns the thresholds of a level. Levels past the end of the table halve the last entry.
func (t *ThresholdTable) At(level int) LevelThresholds {
	if t == nil || len(t.Levels) == 0 {
		return DefaultThresholdTable(0).At(level)
	}
	if level < 0 {
		level = 0
	}
	if level < len(t.Levels) {
		return t.Levels[level]
	}

	last := t.Levels[len(t.Levels)-1]
	scale := math.Pow(0.5, float64(level-len(t.Levels)+1))
	return LevelThresholds{
		Create:  last.Create * scale,
		Display: last.Display * scale,
		Delete:  last.Delete * scale,
		MinView: last.MinView * scale,
	}
}

func (t *ThresholdTable) Validate() error {
	if t == nil || len(t.Levels) == 0 {
		return fmt.Errorf("%w: empty table", ErrThresholdOrder)
	}
	for level, l := range t.Levels {
		if !(l.Create <= l.Display && l.Display < l.Delete) {
			return fmt.Errorf("%w: level %d has create=%v display=%v delete=%v", ErrThresholdOrder, level, l.Create, l.Display, l.Delete)
		}
		if l.Create < 0 || l.MinView < 0 {
			return fmt.Errorf("%w: level %d has negative distances", ErrThresholdOrder, level)
		}
	}
	return nil
}

func (t *ThresholdTable) Copy() *ThresholdTable {
	levels := make([]LevelThresholds, len(t.Levels))
	copy(levels, t.Levels)
	return &ThresholdTable{Levels: levels}
}

type yamlThresholds struct {
	Levels []struct {
		Create  decimal.Decimal `yaml:"create"`
		Display decimal.Decimal `yaml:"display"`
		Delete  decimal.Decimal `yaml:"delete"`
		MinView decimal.Decimal `yaml:"min_view"`
	} `yaml:"levels"`
}

func LoadThresholdTable(path string) (*ThresholdTable, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseThresholdTable(content)
}

// Parses a YAML table of the form
//
//	levels:
//	  - {create: 1.425, display: 1.5, delete: 2.1, min_view: 0.01}
//
// Ordering is checked on the exact decimal values before conversion.
func ParseThresholdTable(content []byte) (*ThresholdTable, error) {
	var raw yamlThresholds
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}

	table := &ThresholdTable{}
	for level, l := range raw.Levels {
		if err := checkOrder(level, l.Create, l.Display, l.Delete); err != nil {
			return nil, err
		}
		table.Levels = append(table.Levels, LevelThresholds{
			Create:  l.Create.InexactFloat64(),
			Display: l.Display.InexactFloat64(),
			Delete:  l.Delete.InexactFloat64(),
			MinView: l.MinView.InexactFloat64(),
		})
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Builds a table from comma separated lists, one value per level. An empty create list
// defaults to the display list, an empty delete list to twice the display list and an empty
// min view list to zero.
func ThresholdTableFromLists(createList, displayList, deleteList, minViewList string) (*ThresholdTable, error) {
	displays, err := parseDecimalList(displayList)
	if err != nil {
		return nil, err
	}
	if len(displays) == 0 {
		return nil, fmt.Errorf("%w: empty display list", ErrThresholdOrder)
	}

	creates, err := parseDecimalListOr(createList, displays, decimal.NewFromInt(1))
	if err != nil {
		return nil, err
	}
	deletes, err := parseDecimalListOr(deleteList, displays, decimal.NewFromInt(2))
	if err != nil {
		return nil, err
	}
	minViews, err := parseDecimalListOr(minViewList, displays, decimal.Zero)
	if err != nil {
		return nil, err
	}
	if len(creates) != len(displays) || len(deletes) != len(displays) || len(minViews) != len(displays) {
		return nil, fmt.Errorf("threshold lists have different lengths")
	}

	table := &ThresholdTable{}
	for level := range displays {
		if err := checkOrder(level, creates[level], displays[level], deletes[level]); err != nil {
			return nil, err
		}
		table.Levels = append(table.Levels, LevelThresholds{
			Create:  creates[level].InexactFloat64(),
			Display: displays[level].InexactFloat64(),
			Delete:  deletes[level].InexactFloat64(),
			MinView: minViews[level].InexactFloat64(),
		})
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func checkOrder(level int, create, display, del decimal.Decimal) error {
	if create.GreaterThan(display) || !display.LessThan(del) {
		return fmt.Errorf("%w: level %d has create=%s display=%s delete=%s", ErrThresholdOrder, level, create, display, del)
	}
	return nil
}

func parseDecimalList(value string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		d, err := decimal.NewFromString(item)
		if err != nil {
			return nil, fmt.Errorf("invalid threshold %q: %w", item, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseDecimalListOr(value string, displays []decimal.Decimal, factor decimal.Decimal) ([]decimal.Decimal, error) {
	values, err := parseDecimalList(value)
	if err != nil || len(values) > 0 {
		return values, err
	}
	out := make([]decimal.Decimal, len(displays))
	for i, d := range displays {
		out[i] = d.Mul(factor)
	}
	return out, nil
}
