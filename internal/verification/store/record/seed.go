package record

import (
	"context"
	"time"

	"github.com/google/uuid"

	"certledger/internal/verification/models"
)

// SeedSampleRecords loads a small system of record for local development.
func SeedSampleRecords(s *InMemory) []*models.CertificateRecord {
	now := time.Now()
	instituteID := uuid.New()

	records := []*models.CertificateRecord{
		{
			ID:           uuid.New(),
			InstituteID:  instituteID,
			EnrollmentNo: "ENR-1001",
			StatementNo:  "STMT-1001",
			StudentName:  "Asha Rao",
			Course:       "B.Tech",
			Branch:       "Computer Science",
			Semester:     "8",
			University:   "State Technical University",
			Subjects:     []string{"Algorithms", "Operating Systems", "Databases"},
			IssueDate:    "2023-06-15",
			CreatedAt:    now,
		},
		{
			ID:           uuid.New(),
			InstituteID:  instituteID,
			EnrollmentNo: "ENR-1002",
			StudentName:  "Dev Mehta",
			Course:       "M.Sc",
			Branch:       "Physics",
			University:   "State Technical University",
			IssueDate:    "2022-11-30",
			CreatedAt:    now,
		},
		{
			ID:           uuid.New(),
			InstituteID:  instituteID,
			EnrollmentNo: "ENR-1003",
			StudentName:  "Meera Iyer",
			Course:       "B.Com",
			IssueDate:    "2021-05-20",
			Revoked:      true,
			CreatedAt:    now,
		},
	}
	for _, rec := range records {
		_ = s.Create(context.Background(), rec)
	}
	return records
}
