package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/utils"
)

type SignupRequest struct {
	Business models.NewBusiness `json:"business" binding:"required"`
	Username string             `json:"username" binding:"required"`
	Name     string             `json:"name" binding:"required"`
	Email    string             `json:"email"`
	Phone    string             `json:"phone"`
	Password string             `json:"password" binding:"required"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignupHandler creates a business and its owner in one shot.
func SignupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SignupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}

		ctx := c.Request.Context()
		business, err := models.CreateBusiness(ctx, &req.Business)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx = utils.SetBusinessIdInContext(ctx, business.ID.String())
		owner := &models.NewUser{
			BusinessId: business.ID.String(),
			Username:   req.Username,
			Name:       req.Name,
			Email:      req.Email,
			Phone:      req.Phone,
			Password:   req.Password,
			IsActive:   utils.NewTrue(),
			Role:       models.UserRoleOwner,
		}
		user, err := models.CreateUser(ctx, owner)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"business": business,
			"user":     user,
		})
	}
}

func LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": ok})
	}
}
