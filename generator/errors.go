package generator

import "github.com/ceyewan/fabric/xerrors"

var (
	// ErrGeneratorNotFound 该类型没有注册生成器
	ErrGeneratorNotFound = xerrors.New("generator not found")

	// ErrDuplicateGenerator 同一类型重复注册
	ErrDuplicateGenerator = xerrors.New("generator already registered")
)

func notFound(category, kind string) error {
	return xerrors.Codedf(xerrors.CodeGeneration, ErrGeneratorNotFound, "%s generator for kind %q", category, kind)
}
