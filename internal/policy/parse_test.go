// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package policy_test

import (
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"
	"gopkg.in/yaml.v2"

	"github.com/juju/jujulint/internal/policy"
)

type parseSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&parseSuite{})

const rulesYAML = `
subordinates:
  ntp:
    where: host only
  telegraf:
    where: container aware
    host-suffixes: [host, physical, guest]
  nrpe:
    where: container aware
    container-suffixes: [container]
    host-suffixes: [host, physical, guest]
  landscape-client:
    where: all except landscape-server
  canonical-livepatch:
    where: metal only
  filebeat:
    where: all
  logrotated:
    where: all
    ubiquitous: true
    check:
      - ["logrotated:juju-info", "*:juju-info"]
known charms:
  - ubuntu
  - ntp
  - nrpe
operations mandatory:
  - grafana
  - nagios
  - prometheus2
openstack mandatory:
  - keystone
  - nova-compute
operations openstack mandatory:
  - ceilometer
kubernetes mandatory:
  - containerd
operations kubernetes mandatory:
  - kubernetes-service-checks
config:
  ntp:
    auto_peers:
      eq: true
  mysql-innodb-cluster:
    enable-binlogs:
      isset: false
  nova-compute:
    cpu-model:
      eq: host-passthrough
      suffixes: [kvm, sriov]
openstack config:
  keystone:
    token-expiration:
      gte: 60
  mysql-innodb-cluster:
    enable-binlogs:
      eq: true
saas:
  - grafana
  - nagios
space checks:
  enforce endpoints:
    - "keystone:public"
  enforce relations:
    - ["mysql:db", "keystone:shared-db"]
  ignore endpoints:
    - "telegraf:prometheus-client"
  ignore relations:
    - ["*:juju-info", "ntp:juju-info"]
relations:
  - charm: nrpe
    ubiquitous: true
    check:
      - ["*:nrpe-external-master", "nrpe:nrpe-external-master"]
  - charm: elasticsearch
    not-exist:
      - ["elasticsearch:nodes", "kibana:rest"]
    exception:
      - graylog
`

func parseYAML(c *gc.C, text string) *policy.Document {
	var raw map[string]interface{}
	err := yaml.Unmarshal([]byte(text), &raw)
	c.Assert(err, jc.ErrorIsNil)
	doc, err := policy.Parse(raw)
	c.Assert(err, jc.ErrorIsNil)
	return doc
}

func (s *parseSuite) TestSubordinateRules(c *gc.C) {
	doc := parseYAML(c, rulesYAML)

	c.Assert(doc.SubordinateCharms(), jc.DeepEquals, []string{
		"canonical-livepatch", "filebeat", "landscape-client",
		"logrotated", "nrpe", "ntp", "telegraf",
	})

	ntp, ok := doc.SubordinateRule("ntp")
	c.Assert(ok, jc.IsTrue)
	c.Check(ntp.Scope.Kind, gc.Equals, policy.ScopeHostOnly)

	telegraf, ok := doc.SubordinateRule("telegraf")
	c.Assert(ok, jc.IsTrue)
	c.Check(telegraf.Scope.Kind, gc.Equals, policy.ScopeContainerAware)
	c.Check(telegraf.HostSuffixes, jc.DeepEquals, []string{"host", "physical", "guest"})
	c.Check(telegraf.ContainerSuffixes, gc.HasLen, 0)

	nrpe, ok := doc.SubordinateRule("nrpe")
	c.Assert(ok, jc.IsTrue)
	c.Check(nrpe.ContainerSuffixes, jc.DeepEquals, []string{"container"})

	landscape, ok := doc.SubordinateRule("landscape-client")
	c.Assert(ok, jc.IsTrue)
	c.Check(landscape.Scope, jc.DeepEquals, policy.Scope{
		Kind:  policy.ScopeAllExcept,
		Charm: "landscape-server",
	})

	_, ok = doc.SubordinateRule("mysterious")
	c.Check(ok, jc.IsFalse)
}

func (s *parseSuite) TestKnownCharms(c *gc.C) {
	doc := parseYAML(c, rulesYAML)
	c.Check(doc.HasKnownCharms(), jc.IsTrue)
	c.Check(doc.KnownCharm("ubuntu"), jc.IsTrue)
	c.Check(doc.KnownCharm("mysterious"), jc.IsFalse)
}

func (s *parseSuite) TestMandatorySections(c *gc.C) {
	doc := parseYAML(c, rulesYAML)
	c.Check(doc.OpsMandatory(), jc.DeepEquals, []string{"grafana", "nagios", "prometheus2"})
	c.Check(doc.CloudMandatory(policy.CloudTypeOpenStack), jc.DeepEquals, []string{"keystone", "nova-compute"})
	c.Check(doc.CloudOpsMandatory(policy.CloudTypeOpenStack), jc.DeepEquals, []string{"ceilometer"})
	c.Check(doc.CloudMandatory(policy.CloudTypeKubernetes), jc.DeepEquals, []string{"containerd"})
	c.Check(doc.CloudOpsMandatory(policy.CloudTypeKubernetes), jc.DeepEquals, []string{"kubernetes-service-checks"})
}

func (s *parseSuite) TestCharmRole(c *gc.C) {
	doc := parseYAML(c, rulesYAML)
	c.Check(doc.CharmRole(policy.CloudTypeOpenStack, "keystone"), gc.Equals, policy.RoleMandatory)
	c.Check(doc.CharmRole(policy.CloudTypeOpenStack, "ceilometer"), gc.Equals, policy.RoleMandatory)
	c.Check(doc.CharmRole(policy.CloudTypeOpenStack, "nagios"), gc.Equals, policy.RoleMandatory)
	c.Check(doc.CharmRole(policy.CloudTypeOpenStack, "ubuntu"), gc.Equals, policy.RoleOptional)
	c.Check(doc.CharmRole(policy.CloudTypeKubernetes, "keystone"), gc.Equals, policy.RoleUnknown)
	c.Check(doc.CharmRole(policy.CloudTypeOpenStack, "mysterious"), gc.Equals, policy.RoleUnknown)
}

func (s *parseSuite) TestConfigRules(c *gc.C) {
	doc := parseYAML(c, rulesYAML)

	ntp := doc.ConfigRules("", "ntp")
	c.Assert(ntp, jc.DeepEquals, map[string]policy.OptionRule{
		"auto_peers": {Asserts: []policy.Assertion{{Op: policy.OpEq, Value: true}}},
	})

	nova := doc.ConfigRules("", "nova-compute")
	c.Assert(nova["cpu-model"], jc.DeepEquals, policy.OptionRule{
		Suffixes: []string{"kvm", "sriov"},
		Asserts:  []policy.Assertion{{Op: policy.OpEq, Value: "host-passthrough"}},
	})

	// Cloud profile rules merge over the generic ones.
	generic := doc.ConfigRules("", "mysql-innodb-cluster")
	c.Assert(generic["enable-binlogs"].Asserts, jc.DeepEquals, []policy.Assertion{
		{Op: policy.OpIsSet, Value: false},
	})
	merged := doc.ConfigRules(policy.CloudTypeOpenStack, "mysql-innodb-cluster")
	c.Assert(merged["enable-binlogs"].Asserts, jc.DeepEquals, []policy.Assertion{
		{Op: policy.OpEq, Value: true},
	})

	keystone := doc.ConfigRules(policy.CloudTypeOpenStack, "keystone")
	c.Assert(keystone["token-expiration"].Asserts, jc.DeepEquals, []policy.Assertion{
		{Op: policy.OpGte, Value: 60},
	})
}

func (s *parseSuite) TestAssertionOrderStable(c *gc.C) {
	doc := parseYAML(c, `
config:
  mycharm:
    myoption:
      search: "^x"
      neq: ""
      eq: x
`)
	rules := doc.ConfigRules("", "mycharm")
	c.Assert(rules["myoption"].Asserts, jc.DeepEquals, []policy.Assertion{
		{Op: policy.OpEq, Value: "x"},
		{Op: policy.OpNeq, Value: ""},
		{Op: policy.OpSearch, Value: "^x"},
	})
}

func (s *parseSuite) TestSaaS(c *gc.C) {
	doc := parseYAML(c, rulesYAML)
	c.Check(doc.SaaS().SortedValues(), jc.DeepEquals, []string{"grafana", "nagios"})
}

func (s *parseSuite) TestSpaceChecks(c *gc.C) {
	doc := parseYAML(c, rulesYAML)

	c.Check(doc.Enforced("keystone:public", "foo:bar"), jc.IsTrue)
	c.Check(doc.Enforced("mysql:db", "keystone:shared-db"), jc.IsTrue)
	c.Check(doc.Enforced("keystone:shared-db", "mysql:db"), jc.IsTrue)
	c.Check(doc.Enforced("foo:bar", "baz:qux"), jc.IsFalse)

	c.Check(doc.Ignored("telegraf:prometheus-client", "foo:bar"), jc.IsTrue)
	c.Check(doc.Ignored("ntp:juju-info", "*:juju-info"), jc.IsTrue)
	c.Check(doc.Ignored("foo:bar", "baz:qux"), jc.IsFalse)
}

func (s *parseSuite) TestRelationRules(c *gc.C) {
	doc := parseYAML(c, rulesYAML)

	rules := doc.RelationRules()
	c.Assert(rules, gc.HasLen, 3)

	c.Check(rules[0].Charm, gc.Equals, "nrpe")
	c.Check(rules[0].Ubiquitous, jc.IsTrue)
	c.Check(rules[0].Checks, jc.DeepEquals, []policy.EndpointPair{
		{First: "*:nrpe-external-master", Second: "nrpe:nrpe-external-master"},
	})

	c.Check(rules[1].Charm, gc.Equals, "elasticsearch")
	c.Check(rules[1].NotExist, jc.DeepEquals, []policy.EndpointPair{
		{First: "elasticsearch:nodes", Second: "kibana:rest"},
	})
	c.Check(rules[1].Exceptions.Contains("graylog"), jc.IsTrue)

	// Ubiquitous subordinates contribute a synthesised rule.
	c.Check(rules[2].Charm, gc.Equals, "logrotated")
	c.Check(rules[2].Ubiquitous, jc.IsTrue)
	c.Check(rules[2].Checks, jc.DeepEquals, []policy.EndpointPair{
		{First: "logrotated:juju-info", Second: "*:juju-info"},
	})
}

func (s *parseSuite) TestUnknownSectionIgnored(c *gc.C) {
	doc := parseYAML(c, `
frobnicator threshold: 3
known charms:
  - ubuntu
`)
	c.Check(doc.HasKnownCharms(), jc.IsTrue)
	c.Check(doc.KnownCharm("ubuntu"), jc.IsTrue)
}

func (s *parseSuite) TestEmptyDocument(c *gc.C) {
	doc, err := policy.Parse(map[string]interface{}{})
	c.Assert(err, jc.ErrorIsNil)
	c.Check(doc.HasKnownCharms(), jc.IsFalse)
	c.Check(doc.SubordinateCharms(), gc.HasLen, 0)
	c.Check(doc.CharmRole(policy.CloudTypeOpenStack, "keystone"), gc.Equals, policy.RoleUnknown)
}

func (s *parseSuite) TestMissingWhere(c *gc.C) {
	var raw map[string]interface{}
	err := yaml.Unmarshal([]byte(`
subordinates:
  foo: {}
`), &raw)
	c.Assert(err, jc.ErrorIsNil)
	_, err = policy.Parse(raw)
	c.Assert(err, gc.ErrorMatches, `subordinate rule "foo" schema check failed: .*`)
}

func (s *parseSuite) TestInvalidWhere(c *gc.C) {
	var raw map[string]interface{}
	err := yaml.Unmarshal([]byte(`
subordinates:
  foo:
    where: sometimes
`), &raw)
	c.Assert(err, jc.ErrorIsNil)
	_, err = policy.Parse(raw)
	c.Assert(err, gc.ErrorMatches, `subordinate rule "foo": subordinate placement "sometimes" not valid`)
}

func (s *parseSuite) TestInvalidConfigAssertion(c *gc.C) {
	var raw map[string]interface{}
	err := yaml.Unmarshal([]byte(`
config:
  mycharm:
    opt: 3
`), &raw)
	c.Assert(err, jc.ErrorIsNil)
	_, err = policy.Parse(raw)
	c.Assert(err, gc.ErrorMatches, `config rule for "mycharm" option "opt": .*`)
}

func (s *parseSuite) TestInvalidRelationPair(c *gc.C) {
	var raw map[string]interface{}
	err := yaml.Unmarshal([]byte(`
space checks:
  enforce relations:
    - [a, b, c]
`), &raw)
	c.Assert(err, jc.ErrorIsNil)
	_, err = policy.Parse(raw)
	c.Assert(err, gc.ErrorMatches, `enforce relations entry \[a b c\] not valid`)
}

func (s *parseSuite) TestRelationsSectionNotList(c *gc.C) {
	var raw map[string]interface{}
	err := yaml.Unmarshal([]byte(`
relations:
  charm: foo
`), &raw)
	c.Assert(err, jc.ErrorIsNil)
	_, err = policy.Parse(raw)
	c.Assert(err, gc.ErrorMatches, `relations section .* not valid`)
}

func (s *parseSuite) TestSplitEndpoint(c *gc.C) {
	name, endpoint, ok := policy.SplitEndpoint("keystone:shared-db")
	c.Check(name, gc.Equals, "keystone")
	c.Check(endpoint, gc.Equals, "shared-db")
	c.Check(ok, jc.IsTrue)

	name, endpoint, ok = policy.SplitEndpoint("keystone")
	c.Check(name, gc.Equals, "keystone")
	c.Check(endpoint, gc.Equals, "")
	c.Check(ok, jc.IsFalse)
}
