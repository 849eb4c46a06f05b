package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/utils"
)

func ListGoalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		goals, err := models.GetGoals(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": goals})
	}
}

func GetGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		goal, err := models.GetGoal(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, goal)
	}
}

func CreateGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewGoal
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		goal, err := models.CreateGoal(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, goal)
	}
}

func UpdateGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		var input models.NewGoal
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		goal, err := models.UpdateGoal(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, goal)
	}
}

func DeleteGoalHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		deleted, err := models.DeleteGoal(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": deleted})
	}
}

func GoalProgressHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		progress, err := models.GetGoalProgress(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, progress)
	}
}
