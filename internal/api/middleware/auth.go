package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/topic-index/internal/model"
	"github.com/d60-Lab/topic-index/pkg/response"
)

const ActorKey = "actor"

var errInvalidSubject = errors.New("token subject is not a uid")

// Auth 解析 Bearer token，把 sub 作为 uid 写入上下文；没有 token 的请求以游客身份继续
func Auth(secret, issuer string) gin.HandlerFunc {
	key := []byte(secret)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		uid, err := parseUID(parser, key, raw)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			c.Abort()
			return
		}
		c.Set(ActorKey, model.UserActor(uid))
		c.Next()
	}
}

func parseUID(parser *jwt.Parser, key []byte, raw string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) { return key, nil }); err != nil {
		return 0, err
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return 0, errInvalidSubject
	}
	return uid, nil
}

// AuthRequired 拒绝游客
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ActorKey); !ok {
			response.Unauthorized(c, "login required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// ActorFrom 未登录时返回 uid 为 0 的游客
func ActorFrom(c *gin.Context) model.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if actor, ok := v.(model.Actor); ok {
			return actor
		}
	}
	return model.UserActor(0)
}

// IssueToken 签发 HS256 token，供 CLI 和测试使用
func IssueToken(secret, issuer string, uid int64, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = strconv.FormatInt(uid, 10)
	if issuer != "" {
		claims.Issuer = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
