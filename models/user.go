package models

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anejaagam/trazo-backend/config"
	"github.com/anejaagam/trazo-backend/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OrganizationId string    `gorm:"index" json:"organization_id"`
	Username       string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name           string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email          *string   `gorm:"size:100;unique" json:"email"`
	Password       string    `gorm:"size:255;not null" json:"-"`
	IsActive       *bool     `gorm:"not null" json:"is_active"`
	Role           UserRole  `gorm:"size:1;default:C" json:"role"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	OrganizationId string   `json:"organization_id"`
	Username       string   `json:"username" binding:"required"`
	Name           string   `json:"name" binding:"required"`
	Email          string   `json:"email"`
	Password       string   `json:"password" binding:"required"`
	Role           UserRole `json:"role"`
}

/*
caches:
	User:$username
*/

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = UserRoleOperator
	}

	user := User{
		OrganizationId: input.OrganizationId,
		Username:       username,
		Name:           strings.TrimSpace(input.Name),
		Password:       string(hashed),
		IsActive:       utils.NewTrue(),
		Role:           role,
	}
	if input.Email != "" {
		email := strings.TrimSpace(input.Email)
		user.Email = &email
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type LoginInfo struct {
	Token string   `json:"token"`
	Jwt   string   `json:"jwt"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

// Login checks the credentials and mints a session token stored in redis. The
// session middleware resolves that token back to the username on each request.
func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	user, err := GetUserByUsername(ctx, username)
	if err != nil {
		return nil, errors.New("invalid username or password")
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return nil, errors.New("invalid username or password")
		}
		return nil, err
	}
	if user.IsActive == nil || !*user.IsActive {
		return nil, errors.New("user is disabled")
	}

	token := uuid.NewString()
	lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 24
	}
	if err := config.SetRedisValue("Token:"+token, user.Username, time.Duration(lifespan)*time.Hour); err != nil {
		return nil, err
	}

	result := LoginInfo{
		Token: token,
		Name:  user.Username,
		Role:  user.Role,
	}
	// Bearer JWT for API clients that don't hold a session token.
	if jwtToken, err := utils.JwtGenerate(user.ID, string(user.Role)); err == nil {
		result.Jwt = jwtToken
	}
	return &result, nil
}

// Logout drops the session token from redis.
func Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("no session token")
	}
	return config.RemoveRedisKey("Token:" + token)
}

// GetUserByUsername reads the user, redis first then db, and refreshes the cache.
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if exists {
		return &user, nil
	}

	db := config.GetDB()
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := db.WithContext(ctx).
		Model(&User{}).
		Where("username = ?", username).
		Take(&user).Error; err != nil {
		return nil, err
	}
	_ = config.SetRedisObject("User:"+username, &user, utils.GetCacheLifespan())
	return &user, nil
}
