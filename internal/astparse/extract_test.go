package astparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csharpSample = `
using System;

namespace Demo
{
    public interface IGreeter
    {
        string Greet(string name);
    }

    public class Greeter : IGreeter
    {
        private readonly ILogger logger;

        public Greeter(ILogger logger)
        {
            this.logger = logger;
        }

        public string Greet(string name)
        {
            if (name == null)
            {
                throw new ArgumentNullException(nameof(name));
            }
            logger.Info("greeting " + name);
            return "hello " + name;
        }
    }
}
`

func TestExtract_CSharp_FindsClassInterfaceAndMethods(t *testing.T) {
	u, err := Extract(LangCSharp, []byte(csharpSample))
	require.NoError(t, err)

	var names []string
	for _, d := range u.Definitions {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "IGreeter")
	assert.Contains(t, names, "Greeter")
	assert.Contains(t, names, "Greet")
}

func TestExtract_CSharp_GreetHasBaseTypeAndCyclomaticComplexity(t *testing.T) {
	u, err := Extract(LangCSharp, []byte(csharpSample))
	require.NoError(t, err)

	var greeterClass *Definition
	for i := range u.Definitions {
		if u.Definitions[i].Name == "Greeter" && u.Definitions[i].Kind == KindClass {
			greeterClass = &u.Definitions[i]
		}
	}
	require.NotNil(t, greeterClass)
	assert.Contains(t, greeterClass.BaseTypes, "IGreeter")

	// IGreeter also declares a bodiless Greet; only Greeter's is checked.
	var greetStats CodeStats
	found := false
	for i, d := range u.Definitions {
		if d.Name == "Greet" && d.Kind == KindMethod && d.Parent == "Greeter" {
			greetStats = u.Stats[i]
			found = true
		}
	}
	require.True(t, found, "Greeter.Greet should be extracted with Parent Greeter")
	assert.GreaterOrEqual(t, greetStats.Cyclomatic, 2)
}

const tsSample = `
export interface Shape {
  area(): number;
}

export class Circle implements Shape {
  constructor(private radius: number) {}

  area(): number {
    if (this.radius < 0) {
      throw new Error("negative radius");
    }
    return Math.PI * this.radius * this.radius;
  }
}
`

func TestExtract_TypeScript_FindsClassAndMethod(t *testing.T) {
	u, err := Extract(LangTypeScript, []byte(tsSample))
	require.NoError(t, err)

	var names []string
	for _, d := range u.Definitions {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "Circle")
	assert.Contains(t, names, "area")
}

func TestLanguageForExt(t *testing.T) {
	assert.Equal(t, LangCSharp, LanguageForExt(".cs"))
	assert.Equal(t, LangTypeScript, LanguageForExt(".ts"))
	assert.Equal(t, LangTSX, LanguageForExt(".tsx"))
	assert.Equal(t, LangUnknown, LanguageForExt(".py"))
}
