package main

import (
	"estate-live/domain/comment"
	"estate-live/projection"
	"time"
)

type Config struct {
	HubURL         string        `env:"HUB_URL,default=ws://localhost:4000/ws" validate:"required,url"`
	CrudURL        string        `env:"CRUD_URL,default=http://localhost:8800" validate:"required,url"`
	CrudTimeout    time.Duration `env:"CRUD_TIMEOUT,default=10s"`
	UserID         string        `env:"USER_ID,required=true" validate:"required"`
	Username       string        `env:"USERNAME"`
	Avatar         string        `env:"AVATAR"`
	PostID         string        `env:"POST_ID,required=true" validate:"required"`
	BadgerFilepath string        `env:"BADGER_FILEPATH,default=.estate-live" validate:"required"`
	LikeMode       string        `env:"LIKE_MODE,default=delta" validate:"oneof=delta authoritative"`
	LogLevel       string        `env:"LOG_LEVEL,default=WARN"`
}

func (c Config) User() comment.User {
	return comment.User{ID: c.UserID, Username: c.Username, Avatar: c.Avatar}
}

func (c Config) Mode() projection.LikeMode {
	if c.LikeMode == "authoritative" {
		return projection.LikeModeAuthoritative
	}
	return projection.LikeModeDelta
}
