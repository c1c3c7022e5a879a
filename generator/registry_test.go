package generator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/fabric/model"
	"github.com/ceyewan/fabric/xerrors"
)

type stubComponent struct{ ComponentGenerator }
type stubBinding struct{ WireBindingGenerator }
type stubResource struct{ ResourceReferenceGenerator }

type impl string

func (i impl) ImplementationKind() model.ImplementationKind { return model.ImplementationKind(i) }

type bindingDef string

func (b bindingDef) Name() string                   { return string(b) }
func (b bindingDef) BindingKind() model.BindingKind { return model.BindingKind(b) }

type resourceDef string

func (r resourceDef) ResourceKind() model.ResourceKind { return model.ResourceKind(r) }

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterComponentGenerator("go", stubComponent{}))
	require.NoError(t, reg.RegisterBindingGenerator("nats", stubBinding{}))
	require.NoError(t, reg.RegisterResourceGenerator("cache-set", stubResource{}))

	_, err := reg.ComponentGenerator("go")
	assert.NoError(t, err)
	_, err = reg.ForComponent(&model.Component{Definition: &model.ComponentDefinition{Implementation: impl("go")}})
	assert.NoError(t, err)
	_, err = reg.ForBinding(&model.Binding{Definition: bindingDef("nats")})
	assert.NoError(t, err)
	_, err = reg.ForResource(&model.ResourceReference{Definition: resourceDef("cache-set")})
	assert.NoError(t, err)
}

func TestRegistryNotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.ComponentGenerator("java")
	require.ErrorIs(t, err, ErrGeneratorNotFound)
	assert.Equal(t, xerrors.CodeGeneration, xerrors.GetCode(err))
	assert.Contains(t, err.Error(), `"java"`)

	_, err = reg.BindingGenerator("jms")
	assert.ErrorIs(t, err, ErrGeneratorNotFound)
	_, err = reg.ResourceGenerator("datasource")
	assert.ErrorIs(t, err, ErrGeneratorNotFound)

	_, err = reg.ForComponent(&model.Component{URI: "app/c"})
	assert.ErrorIs(t, err, ErrGeneratorNotFound)
	assert.Contains(t, err.Error(), "app/c")
	_, err = reg.ForBinding(&model.Binding{})
	assert.ErrorIs(t, err, ErrGeneratorNotFound)
	_, err = reg.ForResource(&model.ResourceReference{})
	assert.ErrorIs(t, err, ErrGeneratorNotFound)
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterBindingGenerator("nats", stubBinding{}))
	assert.ErrorIs(t, reg.RegisterBindingGenerator("nats", stubBinding{}), ErrDuplicateGenerator)
	assert.ErrorIs(t, reg.RegisterComponentGenerator("", stubComponent{}), xerrors.ErrInvalidInput)
}

func TestInterceptorsSnapshot(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterInterceptorGenerator(InterceptorFunc(func(op *model.Operation) []model.Interceptor {
		return []model.Interceptor{{Kind: "tx"}}
	}))
	snap := reg.Interceptors()
	require.Len(t, snap, 1)
	assert.Equal(t, "tx", snap[0].Generate(&model.Operation{})[0].Kind)

	reg.RegisterInterceptorGenerator(InterceptorFunc(func(*model.Operation) []model.Interceptor { return nil }))
	assert.Len(t, snap, 1)
	assert.Len(t, reg.Interceptors(), 2)
}

func TestRegistryConcurrentLookup(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterComponentGenerator("go", stubComponent{}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reg.ComponentGenerator("go")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
