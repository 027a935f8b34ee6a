// Package canonical is the single conversion boundary between loosely-keyed
// field maps (OCR output, manual entry) and the fixed certificate schema.
// Two inputs that differ only in key casing, separators, or field order
// produce byte-identical canonical serializations, which is what makes the
// digest a stable cross-system fingerprint.
package canonical

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Canonical field names, in the fixed known field set. Keys outside this set
// are dropped at the conversion boundary, not errored: documents with missing
// or extra fields still classify downstream.
const (
	FieldEnrollmentNo = "enrollment_no"
	FieldName         = "name"
	FieldCourse       = "course"
	FieldBranch       = "branch"
	FieldSemester     = "semester"
	FieldStatementNo  = "statement_no"
	FieldUniversity   = "university"
	FieldDate         = "date"
	FieldDOB          = "dob"
	FieldSubjects     = "subjects"
)

// aliases maps every accepted input spelling (after lowering and
// underscore-joining) to its canonical field name.
var aliases = map[string]string{
	"enrollment_no":     FieldEnrollmentNo,
	"enrollment_number": FieldEnrollmentNo,
	"student_name":      FieldName,
	"name":              FieldName,
	"course":            FieldCourse,
	"program":           FieldCourse,
	"branch":            FieldBranch,
	"specialization":    FieldBranch,
	"semester":          FieldSemester,
	"sem":               FieldSemester,
	"statement_no":      FieldStatementNo,
	"statement_number":  FieldStatementNo,
	"university":        FieldUniversity,
	"date":              FieldDate,
	"dob":               FieldDOB,
	"date_of_birth":     FieldDOB,
	"subjects":          FieldSubjects,
}

// dateFields are normalized to YYYY-MM-DD where the format is recognized.
var dateFields = map[string]bool{
	FieldDate: true,
	FieldDOB:  true,
}

// Record is the typed canonical form of a certificate. Empty string means
// the field is absent; absent fields are omitted from the serialization
// entirely rather than serialized as "".
type Record struct {
	EnrollmentNo string
	Name         string
	Course       string
	Branch       string
	Semester     string
	StatementNo  string
	University   string
	Date         string
	DOB          string
	Subjects     []string
}

// FromFields converts an arbitrary-keyed field map into a Record. Values may
// be strings or, for subjects, a []string / []any of strings. Unrecognized
// keys and empty values are silently dropped.
func FromFields(raw map[string]any) Record {
	var rec Record
	for k, v := range raw {
		field, ok := aliases[NormalizeKey(k)]
		if !ok {
			continue
		}
		if field == FieldSubjects {
			rec.Subjects = stringList(v)
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if dateFields[field] {
			s = NormalizeDate(s)
		}
		rec.setField(field, s)
	}
	return rec
}

// NormalizeKey lowers a raw key and joins its words with underscores, so
// "Student Name", "student-name" and "STUDENT_NAME" all resolve identically.
func NormalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.ReplaceAll(k, "-", " ")
	k = strings.ReplaceAll(k, "_", " ")
	return strings.Join(strings.Fields(k), "_")
}

func (r *Record) setField(field, value string) {
	switch field {
	case FieldEnrollmentNo:
		r.EnrollmentNo = value
	case FieldName:
		r.Name = value
	case FieldCourse:
		r.Course = value
	case FieldBranch:
		r.Branch = value
	case FieldSemester:
		r.Semester = value
	case FieldStatementNo:
		r.StatementNo = value
	case FieldUniversity:
		r.University = value
	case FieldDate:
		r.Date = value
	case FieldDOB:
		r.DOB = value
	}
}

// Fields returns the present fields keyed by canonical name.
func (r Record) Fields() map[string]any {
	out := make(map[string]any)
	put := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	put(FieldEnrollmentNo, r.EnrollmentNo)
	put(FieldName, r.Name)
	put(FieldCourse, r.Course)
	put(FieldBranch, r.Branch)
	put(FieldSemester, r.Semester)
	put(FieldStatementNo, r.StatementNo)
	put(FieldUniversity, r.University)
	put(FieldDate, r.Date)
	put(FieldDOB, r.DOB)
	if len(r.Subjects) > 0 {
		out[FieldSubjects] = r.Subjects
	}
	return out
}

// IsEmpty reports whether no field survived conversion.
func (r Record) IsEmpty() bool {
	return len(r.Fields()) == 0
}

// Serialize produces the canonical bytes that get digested: compact JSON,
// keys sorted lexicographically, "," and ":" separators, UTF-8, no HTML
// escaping. The exact convention is load-bearing: any deviation changes the
// digest and breaks cross-component comparison.
func (r Record) Serialize() []byte {
	fields := r.Fields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(marshalCompact(k))
		buf.WriteByte(':')
		buf.Write(marshalCompact(fields[k]))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// marshalCompact is json.Marshal without HTML escaping or a trailing newline.
func marshalCompact(v any) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding strings and string slices cannot fail.
	_ = enc.Encode(v)
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func stringList(v any) []string {
	var out []string
	appendOne := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	switch list := v.(type) {
	case []string:
		for _, s := range list {
			appendOne(s)
		}
	case []any:
		for _, item := range list {
			if s, ok := item.(string); ok {
				appendOne(s)
			}
		}
	case string:
		appendOne(list)
	}
	return out
}
