// Package docs registers the OpenAPI document served under /swagger.
// Regenerate with `swag init -g cmd/server/main.go -o internal/api/docs` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/api/v1/categories/{cid}/topics": {
            "get": {
                "tags": ["分类"], "summary": "分类主题列表", "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "cid", "in": "path", "required": true},
                    {"type": "integer", "default": 0, "name": "start", "in": "query"},
                    {"type": "integer", "default": 19, "name": "stop", "in": "query"},
                    {"enum": ["newest_to_oldest", "oldest_to_newest", "most_posts", "most_votes", "most_views"], "type": "string", "name": "sort", "in": "query"},
                    {"type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "name": "tag", "in": "query"},
                    {"type": "integer", "name": "target_uid", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["分类"], "summary": "发布主题", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "cid", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.createTopicRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/api/v1/categories/{cid}/topics/count": {
            "get": {
                "tags": ["分类"], "summary": "分类主题数", "produces": ["application/json"],
                "parameters": [{"type": "integer", "name": "cid", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}
            }
        },
        "/api/v1/topics/pin": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "置顶",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.pinRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "取消置顶",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.tidsRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/topics/expire": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "过期",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.expireRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "取消过期",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.tidsRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/topics/lock": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "锁定",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.tidsRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "解锁",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.tidsRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/topics/{tid}/order": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "置顶排序",
                "parameters": [
                    {"type": "integer", "name": "tid", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.orderRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/topics/{tid}/move": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "迁移主题",
                "parameters": [
                    {"type": "integer", "name": "tid", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.moveRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/topics/{tid}/state": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "恢复主题",
                "parameters": [{"type": "integer", "name": "tid", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "删除主题",
                "parameters": [{"type": "integer", "name": "tid", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/topics/{tid}": {
            "delete": {"security": [{"BearerAuth": []}], "tags": ["主题"], "summary": "清除主题",
                "parameters": [{"type": "integer", "name": "tid", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        },
        "/api/v1/topics/{tid}/events": {
            "get": {"tags": ["主题"], "summary": "审计记录",
                "parameters": [
                    {"type": "integer", "name": "tid", "in": "path", "required": true},
                    {"type": "integer", "default": 0, "name": "offset", "in": "query"},
                    {"type": "integer", "default": 20, "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}}}
        }
    },
    "definitions": {
        "response.Response": {
            "type": "object",
            "properties": {"code": {"type": "integer"}, "message": {"type": "string"}, "data": {}}
        },
        "handler.createTopicRequest": {
            "type": "object", "required": ["title"],
            "properties": {"title": {"type": "string"}, "tags": {"type": "array", "items": {"type": "string"}}, "timestamp": {"type": "integer"}}
        },
        "handler.tidsRequest": {
            "type": "object", "required": ["tids"],
            "properties": {"tids": {"type": "array", "items": {"type": "integer"}}}
        },
        "handler.pinRequest": {
            "type": "object", "required": ["tids"],
            "properties": {"tids": {"type": "array", "items": {"type": "integer"}}, "expiry": {"type": "number"}}
        },
        "handler.expireRequest": {
            "type": "object", "required": ["tids", "expire"],
            "properties": {"tids": {"type": "array", "items": {"type": "integer"}}, "expire": {"type": "number"}}
        },
        "handler.orderRequest": {
            "type": "object", "required": ["order"],
            "properties": {"order": {"type": "integer"}}
        },
        "handler.moveRequest": {
            "type": "object", "required": ["cid"],
            "properties": {"cid": {"type": "integer"}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Topic Index API",
	Description:      "分类主题索引：置顶、过期、锁定与分页合并",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
