// Package savefile encodes and decodes the plain-text player save record.
//
// Layout:
//
//	line 1: energy hitpoints balance level experience
//	line 2: skill level,experience;skill level,experience  (may be empty)
//	line 3+: item name,resource id,quantity  (one per inventory slot)
package savefile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cory-johannsen/kater/internal/game/inventory"
	"github.com/cory-johannsen/kater/internal/game/resource"
)

// ErrMalformed is wrapped by every decoding failure.
var ErrMalformed = errors.New("malformed save record")

// LoadError locates a decoding failure. Line is 1-based; 0 means the record as
// a whole.
type LoadError struct {
	Line   int
	Reason string
}

func (e *LoadError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%v: %s", ErrMalformed, e.Reason)
	}
	return fmt.Sprintf("%v: line %d: %s", ErrMalformed, e.Line, e.Reason)
}

func (e *LoadError) Unwrap() error { return ErrMalformed }

func malformed(line int, format string, args ...any) error {
	return &LoadError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// Record is the decoded content of a save.
type Record struct {
	Values resource.Values
	Skills []resource.Skill
	Items  []inventory.Slot
}

// Encode writes r to w in the save layout.
//
// Precondition: skill names contain no whitespace, ';' or ','; item names and
// resource ids contain no ',' or line breaks.
// Postcondition: Decode of the written bytes returns a Record equal to r.
func Encode(w io.Writer, r Record) error {
	if err := checkEncodable(r); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	v := r.Values
	fmt.Fprintf(bw, "%d %d %d %d %d\n", v.Energy, v.Hitpoints, v.Balance, v.Level, v.Experience)

	for i, sk := range r.Skills {
		if i > 0 {
			bw.WriteByte(';')
		}
		fmt.Fprintf(bw, "%s %d,%d", sk.Name, sk.Level, sk.Experience)
	}
	bw.WriteByte('\n')

	for _, slot := range r.Items {
		fmt.Fprintf(bw, "%s,%s,%d\n", slot.Item.Name, slot.Item.ResourceID, slot.Quantity)
	}
	return bw.Flush()
}

// Marshal returns the encoded form of r.
func Marshal(r Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func checkEncodable(r Record) error {
	for _, sk := range r.Skills {
		if sk.Name == "" || strings.ContainsAny(sk.Name, " \t\r\n;,") {
			return fmt.Errorf("savefile: skill name %q cannot be encoded", sk.Name)
		}
	}
	for _, slot := range r.Items {
		if slot.Item.Name == "" || strings.ContainsAny(slot.Item.Name, ",\r\n") {
			return fmt.Errorf("savefile: item name %q cannot be encoded", slot.Item.Name)
		}
		if strings.ContainsAny(slot.Item.ResourceID, ",\r\n") {
			return fmt.Errorf("savefile: resource id %q cannot be encoded", slot.Item.ResourceID)
		}
	}
	return nil
}

// Decode parses a save record from rd.
//
// Postcondition: Returns the Record, or an error wrapping ErrMalformed (a
// *LoadError) if line 1 is not exactly five integers, line 2 is missing or holds
// a malformed or repeated skill, or any item line is malformed, repeats an item
// or has a non-positive quantity. Blank item lines are skipped.
func Decode(rd io.Reader) (Record, error) {
	var rec Record
	sc := bufio.NewScanner(rd)
	lineNo := 0

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Record{}, fmt.Errorf("savefile: reading: %w", err)
		}
		return Record{}, malformed(0, "empty record")
	}
	lineNo++
	values, err := parseValues(sc.Text())
	if err != nil {
		return Record{}, malformed(lineNo, "%v", err)
	}
	rec.Values = values

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Record{}, fmt.Errorf("savefile: reading: %w", err)
		}
		return Record{}, malformed(2, "missing skills line")
	}
	lineNo++
	skills, err := parseSkills(sc.Text())
	if err != nil {
		return Record{}, malformed(lineNo, "%v", err)
	}
	rec.Skills = skills

	seen := make(map[string]bool)
	for sc.Scan() {
		lineNo++
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		slot, err := parseItem(text)
		if err != nil {
			return Record{}, malformed(lineNo, "%v", err)
		}
		if seen[slot.Item.Name] {
			return Record{}, malformed(lineNo, "item %q listed twice", slot.Item.Name)
		}
		seen[slot.Item.Name] = true
		rec.Items = append(rec.Items, slot)
	}
	if err := sc.Err(); err != nil {
		return Record{}, fmt.Errorf("savefile: reading: %w", err)
	}
	return rec, nil
}

// Unmarshal decodes data.
func Unmarshal(data []byte) (Record, error) {
	return Decode(bytes.NewReader(data))
}

func parseValues(line string) (resource.Values, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return resource.Values{}, fmt.Errorf("want 5 integers, got %d fields", len(fields))
	}
	var n [5]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return resource.Values{}, fmt.Errorf("field %d: %q is not an integer", i+1, f)
		}
		n[i] = v
	}
	return resource.Values{Energy: n[0], Hitpoints: n[1], Balance: n[2], Level: n[3], Experience: n[4]}, nil
}

func parseSkills(line string) ([]resource.Skill, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	var out []resource.Skill
	seen := make(map[string]bool)
	for _, entry := range strings.Split(line, ";") {
		name, progress, ok := strings.Cut(strings.TrimSpace(entry), " ")
		if !ok || name == "" {
			return nil, fmt.Errorf("skill entry %q: want \"name level,experience\"", entry)
		}
		lvl, xp, ok := strings.Cut(strings.TrimSpace(progress), ",")
		if !ok {
			return nil, fmt.Errorf("skill %q: want level,experience", name)
		}
		level, err := strconv.Atoi(strings.TrimSpace(lvl))
		if err != nil {
			return nil, fmt.Errorf("skill %q: level %q is not an integer", name, lvl)
		}
		exp, err := strconv.Atoi(strings.TrimSpace(xp))
		if err != nil {
			return nil, fmt.Errorf("skill %q: experience %q is not an integer", name, xp)
		}
		if level < 1 || exp < 0 {
			return nil, fmt.Errorf("skill %q: progress (%d, %d) out of range", name, level, exp)
		}
		if seen[name] {
			return nil, fmt.Errorf("skill %q listed twice", name)
		}
		seen[name] = true
		out = append(out, resource.Skill{Name: name, SkillProgress: resource.SkillProgress{Level: level, Experience: exp}})
	}
	return out, nil
}

func parseItem(line string) (inventory.Slot, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return inventory.Slot{}, fmt.Errorf("item line %q: want name,resource,quantity", line)
	}
	if parts[0] == "" {
		return inventory.Slot{}, fmt.Errorf("item line %q: empty name", line)
	}
	qty, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return inventory.Slot{}, fmt.Errorf("item %q: quantity %q is not an integer", parts[0], parts[2])
	}
	if qty <= 0 {
		return inventory.Slot{}, fmt.Errorf("item %q: quantity %d is not positive", parts[0], qty)
	}
	return inventory.Slot{
		Item:     inventory.Item{Name: parts[0], ResourceID: parts[1]},
		Quantity: qty,
	}, nil
}
