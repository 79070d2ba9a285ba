package service

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/recist-derivation-server/internal/domain"
)

const assessmentDateLayout = "2006-01-02"

// Normalizer validates and type-checks raw lesion measurement rows into
// immutable LesionMeasurement records. Malformed rows are rejected and
// reported; protocol violations abort the subject.
type Normalizer struct {
	logger *logrus.Logger
}

// NewNormalizer creates a new lesion normalizer.
func NewNormalizer(logger *logrus.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize converts a subject's raw rows into validated measurements.
// Row-level failures (bad diameter, unknown role, missing fields) drop the
// row and continue; the returned error is non-nil only for subject-level
// protocol violations (too many target lesions, ambiguous lesion links).
func (n *Normalizer) Normalize(input domain.SubjectInput) ([]domain.LesionMeasurement, []domain.RejectedRow, error) {
	measurements := make([]domain.LesionMeasurement, 0, len(input.Rows))
	rejected := make([]domain.RejectedRow, 0)

	for _, row := range input.Rows {
		m, err := n.normalizeRow(row)
		if err != nil {
			n.logger.WithFields(logrus.Fields{
				"subject_id":     row.SubjectID,
				"lesion_link_id": row.LesionLinkID,
				"reason":         err.Error(),
			}).Warn("Rejected lesion measurement row")

			rejected = append(rejected, domain.RejectedRow{Row: row, Reason: err.Error()})
			continue
		}
		measurements = append(measurements, *m)
	}

	if err := n.checkLesionLinks(input.SubjectID, measurements); err != nil {
		return nil, rejected, err
	}

	if err := n.checkTargetLesionCount(input.SubjectID, measurements); err != nil {
		return nil, rejected, err
	}

	return measurements, rejected, nil
}

// normalizeRow validates a single raw row.
func (n *Normalizer) normalizeRow(row domain.RawMeasurement) (*domain.LesionMeasurement, error) {
	if row.SubjectID == "" || row.AssessmentDate == "" {
		return nil, &domain.InvalidMeasurementError{
			SubjectID:    row.SubjectID,
			LesionLinkID: row.LesionLinkID,
			Value:        "missing subject id or assessment date",
		}
	}

	date, err := time.ParseInLocation(assessmentDateLayout, row.AssessmentDate, time.UTC)
	if err != nil {
		return nil, &domain.InvalidMeasurementError{
			SubjectID:    row.SubjectID,
			LesionLinkID: row.LesionLinkID,
			Value:        row.AssessmentDate,
		}
	}

	role := domain.LesionRole(strings.ToUpper(strings.TrimSpace(row.LesionRole)))
	if !role.IsValid() {
		return nil, &domain.UnknownRoleError{
			SubjectID:    row.SubjectID,
			LesionLinkID: row.LesionLinkID,
			Role:         row.LesionRole,
		}
	}

	// Non-target lesions are tracked qualitatively; a missing diameter is
	// normal there. Target lesion rows must carry a numeric diameter.
	var diameter float64
	if raw := strings.TrimSpace(row.DiameterMM); raw != "" {
		diameter, err = strconv.ParseFloat(raw, 64)
		if err != nil || diameter < 0 {
			return nil, &domain.InvalidMeasurementError{
				SubjectID:    row.SubjectID,
				LesionLinkID: row.LesionLinkID,
				Value:        row.DiameterMM,
			}
		}
	} else if role == domain.TARGET {
		return nil, &domain.InvalidMeasurementError{
			SubjectID:    row.SubjectID,
			LesionLinkID: row.LesionLinkID,
			Value:        "missing diameter for target lesion",
		}
	}

	evaluation := domain.LesionEvaluation("")
	if row.Evaluation != "" {
		evaluation = domain.LesionEvaluation(strings.ToUpper(strings.TrimSpace(row.Evaluation)))
		if !evaluation.IsValid() {
			return nil, &domain.InvalidMeasurementError{
				SubjectID:    row.SubjectID,
				LesionLinkID: row.LesionLinkID,
				Value:        row.Evaluation,
			}
		}
	}

	m := &domain.LesionMeasurement{
		SubjectID:      row.SubjectID,
		LesionLinkID:   row.LesionLinkID,
		AssessmentDate: date,
		DiameterMM:     diameter,
		Role:           role,
		Location:       row.Location,
		Evaluation:     evaluation,
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return m, nil
}

// checkLesionLinks rejects subjects whose lesion link ids are reused across
// incompatible roles: the link id identifies one lesion for its lifetime, so
// a TARGET link that later appears as NEW cannot be resolved.
func (n *Normalizer) checkLesionLinks(subjectID string, measurements []domain.LesionMeasurement) error {
	rolesByLink := make(map[string]map[domain.LesionRole]bool)

	for _, m := range measurements {
		if m.LesionLinkID == "" {
			continue
		}
		if rolesByLink[m.LesionLinkID] == nil {
			rolesByLink[m.LesionLinkID] = make(map[domain.LesionRole]bool)
		}
		rolesByLink[m.LesionLinkID][m.Role] = true
	}

	ambiguous := make([]string, 0)
	for link, roles := range rolesByLink {
		if len(roles) > 1 {
			ambiguous = append(ambiguous, link)
		}
	}
	if len(ambiguous) == 0 {
		return nil
	}

	// Map iteration order is randomized; report the lexically first link so
	// identical inputs always yield the identical error report.
	sort.Strings(ambiguous)
	link := ambiguous[0]

	roles := make([]domain.LesionRole, 0, len(rolesByLink[link]))
	for role := range rolesByLink[link] {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	return &domain.AmbiguousLesionLinkError{
		SubjectID:    subjectID,
		LesionLinkID: link,
		Roles:        roles,
	}
}

// checkTargetLesionCount enforces the protocol cap of five target lesions
// recorded per subject across the whole study.
func (n *Normalizer) checkTargetLesionCount(subjectID string, measurements []domain.LesionMeasurement) error {
	targets := make(map[string]bool)
	for _, m := range measurements {
		if m.Role == domain.TARGET {
			targets[m.LesionLinkID] = true
		}
	}

	if len(targets) > domain.MaxTargetLesions {
		return &domain.TooManyTargetLesionsError{SubjectID: subjectID, Count: len(targets)}
	}

	return nil
}
