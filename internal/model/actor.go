package model

import "strconv"

// Actor 发起状态变更的主体：普通用户或系统（惰性过期等）
type Actor struct {
	uid    int64
	system bool
}

// SystemActor 拥有最高权限，跳过权限校验
var SystemActor = Actor{system: true}

func UserActor(uid int64) Actor { return Actor{uid: uid} }

func (a Actor) IsSystem() bool { return a.system }

// UID 系统主体返回 0
func (a Actor) UID() int64 {
	if a.system {
		return 0
	}
	return a.uid
}

func (a Actor) String() string {
	if a.system {
		return "system"
	}
	return "uid:" + strconv.FormatInt(a.uid, 10)
}
