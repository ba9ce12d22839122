package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/csgonades/nade-api/api/middleware"
	"github.com/csgonades/nade-api/auth"
	"github.com/csgonades/nade-api/engagement"
	"github.com/csgonades/nade-api/nade"
)

// claimsFromCtx returns the authenticated caller, or nil.
func claimsFromCtx(c *gin.Context) *auth.Claims {
	return middleware.Claims(c)
}

// ownerOf turns the caller's claims into the owner stamped on content.
func ownerOf(claims *auth.Claims) nade.Owner {
	return nade.Owner{UserID: claims.UserID, Nickname: claims.Nickname, Avatar: claims.Avatar}
}

func callerOf(claims *auth.Claims) engagement.Caller {
	if claims == nil {
		return engagement.Caller{}
	}
	return engagement.Caller{UserID: claims.UserID, Moderator: claims.IsModerator()}
}

// canManage reports whether the caller may edit or delete n.
func canManage(claims *auth.Claims, n *nade.Nade) bool {
	return claims != nil && (claims.UserID == n.Owner.UserID || claims.IsModerator())
}
