// Package resource 提供 cache-set 资源：组件声明一组命名缓存，部署时按缓存类型生成
// 物理缓存配置，再由 Builder 创建为 cache.Cache 实例。
//
// 每种缓存类型（memory / redis）对应一个 CacheGenerator，未注册的类型在生成阶段报错。
//
// 基本使用：
//
//	_ = registry.RegisterResourceGenerator(resource.KindCacheSet, resource.NewCacheSetGenerator())
//
//	pw, _ := wireGen.GenerateResource(res)
//	caches, _ := resource.NewBuilder(resource.WithRedisConnector(conn)).Build(pw.Target)
package resource

import (
	"time"

	"github.com/ceyewan/fabric/cache"
	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

// KindCacheSet cache-set 资源类型
const KindCacheSet model.ResourceKind = "cache-set"

// PropCaches 目标端描述中保存 []*cache.Config 的属性名
const PropCaches = "caches"

var (
	ErrCacheGeneratorNotFound = xerrors.New("cache resource generator not found for type")
	ErrUnexpectedDefinition   = xerrors.New("resource: unexpected definition")
	ErrDuplicateCache         = xerrors.New("resource: duplicate cache name")
)

// CacheSpec 单个缓存的声明
type CacheSpec struct {
	Name     string        `yaml:"name"`
	Type     cache.Type    `yaml:"type"`
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

// CacheSetDefinition cache-set 资源定义
type CacheSetDefinition struct {
	Caches []CacheSpec `yaml:"caches"`
}

func (*CacheSetDefinition) ResourceKind() model.ResourceKind { return KindCacheSet }

// CacheGenerator 把缓存声明转换为某类后端的物理配置
type CacheGenerator interface {
	Generate(res *model.ResourceReference, spec CacheSpec) (*cache.Config, error)
}

// CacheSetGenerator cache-set 资源生成器
type CacheSetGenerator struct {
	generators map[cache.Type]CacheGenerator
}

// NewCacheSetGenerator 预置 memory 与 redis 两类缓存生成器
func NewCacheSetGenerator() *CacheSetGenerator {
	return &CacheSetGenerator{generators: map[cache.Type]CacheGenerator{
		cache.TypeMemory: memoryGenerator{},
		cache.TypeRedis:  redisGenerator{},
	}}
}

// Register 注册或替换某类缓存的生成器，只应在启动阶段调用
func (g *CacheSetGenerator) Register(t cache.Type, gen CacheGenerator) {
	g.generators[t] = gen
}

// GenerateWireTarget 生成的缓存由组件直接持有，目标端可优化
func (g *CacheSetGenerator) GenerateWireTarget(res *model.ResourceReference) (*model.WireTarget, error) {
	def, ok := res.Definition.(*CacheSetDefinition)
	if !ok {
		return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrUnexpectedDefinition, "resource %s", res.URI)
	}

	seen := make(map[string]struct{}, len(def.Caches))
	configs := make([]*cache.Config, 0, len(def.Caches))
	for _, spec := range def.Caches {
		if _, dup := seen[spec.Name]; dup {
			return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrDuplicateCache, "resource %s cache %s", res.URI, spec.Name)
		}
		seen[spec.Name] = struct{}{}

		t := spec.Type
		if t == "" {
			t = cache.TypeMemory
		}
		gen, ok := g.generators[t]
		if !ok {
			return nil, xerrors.Codedf(xerrors.CodeGeneration, ErrCacheGeneratorNotFound, "%s", t)
		}
		cfg, err := gen.Generate(res, spec)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return &model.WireTarget{
		URI:         res.URI,
		Kind:        string(KindCacheSet),
		Properties:  map[string]any{PropCaches: configs},
		Optimizable: true,
	}, nil
}

type memoryGenerator struct{}

func (memoryGenerator) Generate(_ *model.ResourceReference, spec CacheSpec) (*cache.Config, error) {
	return &cache.Config{
		Name:       spec.Name,
		Type:       cache.TypeMemory,
		Capacity:   spec.Capacity,
		DefaultTTL: spec.TTL,
	}, nil
}

// redisGenerator 未指定前缀时以资源 URI 区分不同组件的同名缓存
type redisGenerator struct{}

func (redisGenerator) Generate(res *model.ResourceReference, spec CacheSpec) (*cache.Config, error) {
	prefix := spec.Prefix
	if prefix == "" {
		prefix = res.URI + ":" + spec.Name + ":"
	}
	return &cache.Config{
		Name:       spec.Name,
		Type:       cache.TypeRedis,
		Prefix:     prefix,
		DefaultTTL: spec.TTL,
	}, nil
}
