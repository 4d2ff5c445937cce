package main

import (
	"context"
	"fmt"
	"time"

	"github.com/stemsi/vigil-backend/internal/config"
	"github.com/stemsi/vigil-backend/internal/database"
	"github.com/stemsi/vigil-backend/internal/logger"
	"github.com/stemsi/vigil-backend/internal/model"
	"github.com/stemsi/vigil-backend/internal/repository"
)

// Seeds a demo sitting: one exam an hour from now, three rooms with
// supervisors and a shared floor supervisor, and 30 enrolled students
// (every tenth with a 25% extended-time accommodation).
func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	profileRepo := repository.NewProfileRepository(pool)
	examRepo := repository.NewExamRepository(pool)
	assignmentRepo := repository.NewAssignmentRepository(pool)
	attendanceRepo := repository.NewAttendanceRepository(pool)

	fmt.Println("=== Seeding demo exam sitting ===")

	exam := &model.Exam{
		Title:           "Mathematics Mock Final",
		SubjectName:     "Mathematics",
		StartTime:       time.Now().Add(time.Hour).Truncate(time.Minute),
		DurationMinutes: 90,
	}
	if err := examRepo.Create(ctx, exam); err != nil {
		log.Fatal().Err(err).Msg("Failed to create exam")
	}
	fmt.Printf("Created exam %s\n", exam.ID)

	floorSupervisor := &model.Profile{FullName: "Margaret Ellison", Role: model.RoleFloorSupervisor}
	if err := profileRepo.Create(ctx, floorSupervisor); err != nil {
		log.Fatal().Err(err).Msg("Failed to create floor supervisor")
	}

	supervisorNames := []string{"Daniel Okafor", "Hannah Brooks", "Tomas Lindqvist"}
	rooms := []string{"A-101", "A-102", "B-201"}

	studentNames := []string{
		"Alice Morgan", "Ben Carter", "Chloe Dawson", "David Ellis", "Emma Foster",
		"Felix Grant", "Grace Hollis", "Henry Irwin", "Isla Jennings", "Jack Keller",
		"Katie Lowell", "Liam Mercer", "Mia Norton", "Noah Osborne", "Olivia Price",
		"Peter Quinn", "Rosie Shaw", "Samuel Tate", "Tara Underwood", "Umar Vance",
		"Violet Webb", "Will Xiong", "Yara York", "Zane Abbott", "Amber Blake",
		"Caleb Doyle", "Daisy Ennis", "Ethan Frost", "Freya Gould", "George Hale",
	}

	studentIdx := 0
	enrolled := 0
	for i, roomNumber := range rooms {
		supervisor := &model.Profile{FullName: supervisorNames[i], Role: model.RoleSupervisor}
		if err := profileRepo.Create(ctx, supervisor); err != nil {
			log.Fatal().Err(err).Msg("Failed to create supervisor")
		}

		assignment := &model.RoomAssignment{
			ExamID:            exam.ID,
			RoomNumber:        roomNumber,
			SupervisorID:      &supervisor.ID,
			FloorSupervisorID: &floorSupervisor.ID,
		}
		if err := assignmentRepo.Create(ctx, assignment); err != nil {
			log.Fatal().Err(err).Msg("Failed to create room assignment")
		}
		fmt.Printf("Created room %s (%s)\n", roomNumber, assignment.ID)

		for j := 0; j < 10; j++ {
			student := &model.Profile{FullName: studentNames[studentIdx], Role: model.RoleStudent}
			if err := profileRepo.Create(ctx, student); err != nil {
				fmt.Printf("Error creating student %s: %v\n", studentNames[studentIdx], err)
				studentIdx++
				continue
			}
			if studentIdx%10 == 9 {
				if err := profileRepo.SetExtensionPercent(ctx, student.ID, 25); err != nil {
					fmt.Printf("Error granting extension to %s: %v\n", student.FullName, err)
				}
			}
			if _, err := attendanceRepo.Enroll(ctx, assignment.ID, student.ID); err != nil {
				fmt.Printf("Error enrolling student %s: %v\n", student.FullName, err)
			} else {
				enrolled++
			}
			studentIdx++
		}
	}

	fmt.Printf("\nSeed completed! Exam %s with %d rooms and %d enrolled students.\n",
		exam.ID, len(rooms), enrolled)
}
