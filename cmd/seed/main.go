// Command seed provisions demo accounts for every role plus a funded
// benefit wallet for the demo member. Safe to run repeatedly: existing
// accounts are left untouched.
package main

import (
	"context"
	"errors"
	"log"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"healthpay/internal/config"
	"healthpay/internal/logger"
	"healthpay/internal/models"
	"healthpay/internal/repositories"
	"healthpay/internal/services/wallet"
)

type seedUser struct {
	MemberID string
	Email    string
	Phone    string
	Name     string
	Role     string
}

var seedUsers = []seedUser{
	{MemberID: "MEM-00001", Email: "member@healthpay.local", Phone: "+911000000001", Name: "Demo Member", Role: models.RoleMember},
	{MemberID: "TPA-00001", Email: "reviewer@healthpay.local", Phone: "+911000000002", Name: "Demo Reviewer", Role: models.RoleTPAUser},
	{MemberID: "TPA-00002", Email: "tpa-admin@healthpay.local", Phone: "+911000000003", Name: "Demo TPA Admin", Role: models.RoleTPAAdmin},
	{MemberID: "OPS-00001", Email: "operations@healthpay.local", Phone: "+911000000004", Name: "Demo Operations", Role: models.RoleOperations},
	{MemberID: "ADM-00001", Email: "admin@healthpay.local", Phone: "+911000000005", Name: "Demo Admin", Role: models.RoleAdmin},
}

var demoCategories = []wallet.CategoryAllocation{
	{CategoryCode: "CAT001", CategoryName: "Consultation", Allocated: 5000},
	{CategoryCode: "CAT002", CategoryName: "Pharmacy", Allocated: 3000},
	{CategoryCode: "CAT003", CategoryName: "Diagnostics", Allocated: 4000},
	{CategoryCode: "CAT004", CategoryName: "IPD", Allocated: 50000},
	{CategoryCode: "CAT005", CategoryName: "OPD", Allocated: 8000},
	{CategoryCode: "CAT006", CategoryName: "Dental", Allocated: 2000},
	{CategoryCode: "CAT007", CategoryName: "Vision", Allocated: 2000},
	{CategoryCode: "CAT008", CategoryName: "Wellness", IsUnlimited: true},
}

func main() {
	config.LoadEnv()

	zlog, err := logger.New()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	if err := repositories.InitDB(); err != nil {
		zlog.Fatal("failed to initialize databases", zap.Error(err))
	}
	defer func() {
		if sqlDB, err := repositories.DB.DB(); err == nil {
			sqlDB.Close()
		}
		if repositories.CacheService != nil {
			repositories.CacheService.Close()
		}
	}()

	password := config.GetEnv("SEED_PASSWORD", "ChangeMe@123")
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		zlog.Fatal("failed to hash seed password", zap.Error(err))
	}

	userRepo := repositories.NewUserRepository(repositories.DB)
	var memberUserID uint
	for _, su := range seedUsers {
		if existing, err := userRepo.GetByEmail(su.Email); err == nil {
			zlog.Info("user already exists", zap.String("email", su.Email))
			if su.Role == models.RoleMember {
				memberUserID = existing.ID
			}
			continue
		}

		user := models.User{
			MemberID:     su.MemberID,
			Email:        su.Email,
			Phone:        su.Phone,
			Password:     string(hashed),
			Name:         su.Name,
			Role:         su.Role,
			Status:       "active",
			TokenVersion: 1,
		}
		if err := userRepo.Create(&user); err != nil {
			zlog.Fatal("failed to create user", zap.String("email", su.Email), zap.Error(err))
		}
		zlog.Info("created user", zap.String("email", su.Email), zap.String("role", su.Role))
		if su.Role == models.RoleMember {
			memberUserID = user.ID
		}
	}

	if memberUserID == 0 {
		zlog.Fatal("demo member missing after seeding")
	}

	walletService := wallet.NewService(
		repositories.NewWalletRepository(repositories.DB),
		repositories.NewSequenceRepository(repositories.DB),
		repositories.CacheService,
		zlog,
		nil,
	)

	ctx := context.Background()
	actor := models.Actor{ID: 0, Name: "seed", Role: models.RoleAdmin}
	if _, err := walletService.Initialize(ctx, wallet.InitializeRequest{
		MemberID:     memberUserID,
		PolicyNumber: "POL-DEMO-0001",
		Categories:   demoCategories,
	}, actor); err != nil {
		if errors.Is(err, wallet.ErrDuplicateWallet) {
			zlog.Info("demo wallet already exists")
		} else {
			zlog.Fatal("failed to initialize demo wallet", zap.Error(err))
		}
	} else {
		zlog.Info("demo wallet initialized", zap.Uint("member_id", memberUserID))
	}

	zlog.Info("seeding complete")
}
